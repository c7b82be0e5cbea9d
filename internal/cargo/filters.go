package cargo

import (
	"slices"

	cserrors "codspeed/internal/errors"
)

// PackageFilters selects workspace packages the way cargo does.
type PackageFilters struct {
	Workspace bool
	Exclude   []string
	Package   []string
}

// Validate rejects --exclude without --workspace.
func (f PackageFilters) Validate() error {
	if len(f.Exclude) > 0 && !f.Workspace {
		return cserrors.NewConfigurationError("--exclude can only be used together with --workspace")
	}
	return nil
}

// Resolve returns the selected packages: the whole workspace minus exclusions,
// the explicitly named packages, or cargo's default members.
func (f PackageFilters) Resolve(meta *Metadata) ([]Package, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	switch {
	case f.Workspace:
		var out []Package
		for _, p := range meta.members(meta.WorkspaceMembers) {
			if !slices.Contains(f.Exclude, p.Name) {
				out = append(out, p)
			}
		}
		return out, nil

	case len(f.Package) > 0:
		out := make([]Package, 0, len(f.Package))
		for _, name := range f.Package {
			p, ok := meta.PackageByName(name)
			if !ok {
				return nil, cserrors.NewConfigurationError("package `%s` not found in the workspace", name)
			}
			out = append(out, p)
		}
		return out, nil

	default:
		if len(meta.WorkspaceDefaultMembers) > 0 {
			return meta.members(meta.WorkspaceDefaultMembers), nil
		}
		return meta.members(meta.WorkspaceMembers), nil
	}
}

// Args forwards the filters to a cargo command line.
func (f PackageFilters) Args() []string {
	var args []string
	if f.Workspace {
		args = append(args, "--workspace")
	}
	for _, e := range f.Exclude {
		args = append(args, "--exclude", e)
	}
	for _, p := range f.Package {
		args = append(args, "--package", p)
	}
	return args
}
