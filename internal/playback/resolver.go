// Package playback maps a stored video record to the URL a player
// should load.
package playback

import (
	"strings"

	"mitabo/internal/database"
)

// Source is a resolved playback target.
type Source struct {
	URL string `json:"url"`
	HLS bool   `json:"hls"`
}

// Resolver turns video records into playback URLs using the mount
// prefixes the file handlers serve from.
type Resolver struct {
	hlsPrefix   string
	mediaPrefix string
}

// NewResolver builds a resolver for the given URL prefixes, e.g.
// "/hls" and "/media".
func NewResolver(hlsPrefix, mediaPrefix string) *Resolver {
	return &Resolver{
		hlsPrefix:   strings.TrimSuffix(hlsPrefix, "/"),
		mediaPrefix: strings.TrimSuffix(mediaPrefix, "/"),
	}
}

// Resolve picks the single playback source for a video. An HLS
// manifest wins over the stored file, which wins over an external
// URL. A video with none of the three resolves to an empty URL.
func (r *Resolver) Resolve(v *database.Video) Source {
	switch {
	case v.HLSManifest != "":
		return Source{URL: r.hlsPrefix + "/" + strings.TrimPrefix(v.HLSManifest, "/"), HLS: true}
	case v.Filename != "":
		return Source{URL: r.mediaPrefix + "/" + strings.TrimPrefix(v.Filename, "/")}
	case v.ExternalURL != "":
		return Source{URL: v.ExternalURL}
	default:
		return Source{}
	}
}
