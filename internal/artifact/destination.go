package artifact

import (
	"fmt"
	"path"
	"strings"
)

// Destination is a parsed s3://bucket/prefix wheel-store location.
type Destination struct {
	Bucket string
	Prefix string
}

// ParseDestination parses a destination of the form s3://bucket/prefix.
// The prefix may be empty.
func ParseDestination(destination string) (Destination, error) {
	rest, ok := strings.CutPrefix(destination, "s3://")
	if !ok {
		return Destination{}, fmt.Errorf("destination %q is not an s3:// URL", destination)
	}
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return Destination{}, fmt.Errorf("destination %q has no bucket name", destination)
	}

	bucket, prefix, _ := strings.Cut(rest, "/")
	return Destination{Bucket: bucket, Prefix: prefix}, nil
}

// KeyFor returns the object key for a file, relative to the store root:
// prefix/commit/relpath. relpath should use forward slashes.
func (d Destination) KeyFor(commit, relpath string) string {
	return path.Join(d.Prefix, commit, relpath)
}

// CommitPrefix returns the key prefix holding a commit's wheels, with a
// trailing slash so that listing cannot match a sibling commit with a
// common prefix.
func (d Destination) CommitPrefix(commit string) string {
	return path.Join(d.Prefix, commit) + "/"
}

func (d Destination) String() string {
	if d.Prefix == "" {
		return "s3://" + d.Bucket
	}
	return "s3://" + d.Bucket + "/" + d.Prefix
}
