package pathutil

import (
	"errors"
	"path"
	"strings"
)

// Platform is the mobile platform an artifact targets, derived from its
// file extension.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

var (
	ErrEmptySegment   = errors.New("path segment cannot be empty")
	ErrInvalidSegment = errors.New("path segment format is invalid")
	ErrUnsupportedExt = errors.New("only .apk and .ipa files are supported")
)

// DetectPlatform maps a file name to its platform by extension.
// Returns ErrUnsupportedExt for anything that is not .apk or .ipa.
func DetectPlatform(fileName string) (Platform, error) {
	lower := strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(lower, ".apk"):
		return PlatformAndroid, nil
	case strings.HasSuffix(lower, ".ipa"):
		return PlatformIOS, nil
	default:
		return "", ErrUnsupportedExt
	}
}

// validateSegment rejects segments that are empty or would escape the
// store root when joined into a relative path.
func validateSegment(seg string) error {
	if seg == "" {
		return ErrEmptySegment
	}
	if strings.Contains(seg, "..") {
		return ErrInvalidSegment
	}
	if strings.ContainsAny(seg, "/\\\x00") {
		return ErrInvalidSegment
	}
	return nil
}

// Derive maps artifact metadata to the canonical relative path
// project/version/channel/fileName and the platform implied by the file
// extension. It is pure: same inputs always yield the same path.
func Derive(projectName, version, channel, fileName string) (string, Platform, error) {
	for _, seg := range []string{projectName, version, channel, fileName} {
		if err := validateSegment(seg); err != nil {
			return "", "", err
		}
	}
	platform, err := DetectPlatform(fileName)
	if err != nil {
		return "", "", err
	}
	return path.Join(projectName, version, channel, fileName), platform, nil
}

// NameTags carries the optional descriptive tags that participate in
// canonical naming, in their fixed order.
type NameTags struct {
	ResVersion   string
	AreaName     string
	Branch       string
	Rbranch      string
	SDK          string
	Harden       bool
	CodeSignType string
	AppID        string
}

// CanonicalFileName synthesizes a file name from metadata so that two
// uploads differing only in descriptive tags land on disjoint paths.
// Field order: project, version, build, channel, then the optional tags,
// joined with "_", keeping the original extension.
func CanonicalFileName(projectName, version, buildNumber, channel, originalName string, tags NameTags) string {
	ext := path.Ext(originalName)

	parts := []string{projectName, version, buildNumber, channel}
	for _, tag := range []string{tags.ResVersion, tags.AreaName, tags.Branch, tags.Rbranch, tags.SDK} {
		if tag != "" {
			parts = append(parts, tag)
		}
	}
	if tags.Harden {
		parts = append(parts, "harden")
	}
	for _, tag := range []string{tags.CodeSignType, tags.AppID} {
		if tag != "" {
			parts = append(parts, tag)
		}
	}

	return strings.Join(parts, "_") + ext
}
