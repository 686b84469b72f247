package service

import "errors"

var (
	// ErrMissingField means a required upload field was empty.
	ErrMissingField = errors.New("missing required field")
	// ErrNotFound covers both a missing record and a missing backing file;
	// a reconciled-away record behaves like it never existed.
	ErrNotFound = errors.New("not found")
	// ErrInvalidFilter means a clear request lacked the fields its mode requires.
	ErrInvalidFilter = errors.New("invalid clear filter")
	// ErrSizeMismatch means the stored byte count differs from the size the
	// client declared for the upload.
	ErrSizeMismatch = errors.New("size mismatch")
	// ErrNoIcon means neither the cache nor the extractor produced an icon.
	ErrNoIcon = errors.New("no icon available")
	// ErrManifestUnavailable means the record cannot produce an iOS install
	// manifest (wrong platform or missing appId).
	ErrManifestUnavailable = errors.New("install manifest unavailable")
)
