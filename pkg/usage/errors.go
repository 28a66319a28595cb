package usage

import "errors"

var ErrSnapshotFailed = errors.New("failed to load usage snapshot")
