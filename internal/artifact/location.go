package artifact

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"scenecast/internal/pkg/errors"
)

// Location identifies a stored artifact. Version is the freshness marker
// appended as ?v=; it changes on every rewrite so clients refetch.
type Location struct {
	Bucket  string
	Key     string
	Version int64
}

// URL formats l as https://<bucket>.<host>/<key>?v=<version>.
func (l Location) URL(host string) string {
	u := fmt.Sprintf("https://%s.%s/%s", l.Bucket, host, escapeKey(l.Key))
	if l.Version > 0 {
		u += "?v=" + strconv.FormatInt(l.Version, 10)
	}
	return u
}

// URI formats l as s3://<bucket>/<key>, without a version.
func (l Location) URI() string {
	return "s3://" + l.Bucket + "/" + l.Key
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// ParseLocation accepts s3://bucket/key, virtual-hosted
// https://bucket.<host>/key and path-style https://s3.<...>/bucket/key.
// A ?v= marker is recorded in Version; other query parameters are dropped.
func ParseLocation(raw string) (Location, error) {
	const op = "artifact.parse_location"
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, errors.E(op, errors.CodeValidation, "empty artifact location", nil)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, errors.E(op, errors.CodeValidation, "malformed artifact location", err).WithField("location", raw)
	}

	var loc Location
	path := strings.TrimPrefix(u.Path, "/")
	switch u.Scheme {
	case "s3":
		loc = Location{Bucket: u.Host, Key: path}
	case "https", "http":
		host := u.Hostname()
		if isPathStyleHost(host) {
			bucket, key, _ := strings.Cut(path, "/")
			loc = Location{Bucket: bucket, Key: key}
		} else {
			loc = Location{Bucket: bucketFromHost(host), Key: path}
		}
	default:
		return Location{}, errors.Newf(errors.CodeValidation, "unsupported artifact location scheme %q", u.Scheme).WithField("location", raw)
	}

	if loc.Bucket == "" || loc.Key == "" || strings.HasSuffix(loc.Key, "/") {
		return Location{}, errors.New(errors.CodeValidation, "artifact location needs a bucket and a key").WithField("location", raw)
	}
	if v := u.Query().Get("v"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			loc.Version = n
		}
	}
	return loc, nil
}

// isPathStyleHost reports hosts that carry the bucket in the path, such as
// s3.amazonaws.com or s3.eu-west-1.amazonaws.com.
func isPathStyleHost(host string) bool {
	return strings.HasPrefix(host, "s3.") || strings.HasPrefix(host, "s3-")
}

// bucketFromHost strips the service suffix from a virtual-hosted name.
// "my.bucket.s3.us-east-1.amazonaws.com" yields "my.bucket".
func bucketFromHost(host string) string {
	if i := strings.Index(host, ".s3."); i > 0 {
		return host[:i]
	}
	if i := strings.Index(host, ".s3-"); i > 0 {
		return host[:i]
	}
	b, _, _ := strings.Cut(host, ".")
	return b
}
