package assets

import "errors"

// AssetResolver looks assets up in the user's asset directory first and
// falls back to the built-in ones when the user has none of that name.
type AssetResolver struct {
	user    AssetLoader // nil without --asset-path
	builtin AssetLoader
}

// NewAssetResolver returns a resolver over the built-in assets, layered
// under dir when dir is not empty.
func NewAssetResolver(dir string) (*AssetResolver, error) {
	r := &AssetResolver{builtin: NewEmbeddedLoader()}
	if dir == "" {
		return r, nil
	}
	user, err := NewFilesystemLoader(dir)
	if err != nil {
		return nil, err
	}
	r.user = user
	return r, nil
}

// LoadStyle implements AssetLoader.
func (r *AssetResolver) LoadStyle(name string) (string, error) {
	return r.resolve(name, AssetLoader.LoadStyle)
}

// LoadLayout implements AssetLoader.
func (r *AssetResolver) LoadLayout(name string) (string, error) {
	return r.resolve(name, AssetLoader.LoadLayout)
}

// resolve falls back to the built-in loader on a miss only. Invalid names
// and read errors from the user directory are returned as is.
func (r *AssetResolver) resolve(name string, load func(AssetLoader, string) (string, error)) (string, error) {
	if r.user != nil {
		content, err := load(r.user, name)
		if err == nil || !missing(err) {
			return content, err
		}
	}
	return load(r.builtin, name)
}

func missing(err error) bool {
	return errors.Is(err, ErrStyleNotFound) || errors.Is(err, ErrLayoutNotFound)
}

// HasCustomLoader reports whether a user asset directory is configured.
func (r *AssetResolver) HasCustomLoader() bool {
	return r.user != nil
}

var _ AssetLoader = (*AssetResolver)(nil)
