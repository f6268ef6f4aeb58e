package snapshot

import "errors"

var (
	ErrSourceMissing           = errors.New("snapshot: source directory missing")
	ErrSourceChanged           = errors.New("snapshot: source changed during quiet window")
	ErrSourceChangedDuringCopy = errors.New("snapshot: source changed during copy")
	ErrCopyMismatch            = errors.New("snapshot: copy does not match source")
	ErrValidationFailed        = errors.New("snapshot: staged copy failed validation")
	ErrIDCollision             = errors.New("snapshot: id collision")
	ErrCaptureFailed           = errors.New("snapshot: capture failed")
	ErrProcessActive           = errors.New("snapshot: game process is running")
	ErrTargetMissing           = errors.New("snapshot: target snapshot not found")
	ErrBackupFailed            = errors.New("snapshot: pre-restore backup failed")
	ErrUnknownBucket           = errors.New("snapshot: unknown bucket")
)
