package snapshot

import "fmt"

// Bucket is a retention domain. The value is also the directory name under
// the snapshots root.
type Bucket string

const (
	BucketClosedManual  Bucket = "closed_manual"
	BucketRuntimeHotkey Bucket = "runtime_hotkey"
	BucketPreRaidAuto   Bucket = "pre_raid_auto"
	BucketRuntimePoll   Bucket = "_runtime_poll_temp"
)

// Reasons written by the callers in this module.
const (
	ReasonManualClick      = "manual_click"
	ReasonHotkey           = "hotkey_f5"
	ReasonPoll             = "poll"
	ReasonPreRestoreBackup = "pre_restore_backup"
	ReasonPreRaidAuto      = "pre_raid_auto"
	ReasonUnknown          = "unknown"
)

// pollCap applies to BucketRuntimePoll regardless of configured retention.
const pollCap = 1

var allBuckets = []Bucket{BucketClosedManual, BucketRuntimeHotkey, BucketPreRaidAuto, BucketRuntimePoll}

// VisibleBuckets are the buckets shown to users; the polling bucket is internal.
var VisibleBuckets = []Bucket{BucketClosedManual, BucketRuntimeHotkey, BucketPreRaidAuto}

var bucketLabels = map[Bucket]string{
	BucketClosedManual:  "Saved after game closed",
	BucketRuntimeHotkey: "In-game F5 save",
	BucketPreRaidAuto:   "Last save before raid",
	BucketRuntimePoll:   "Runtime poll (temporary)",
}

var reasonLabels = map[string]string{
	ReasonManualClick:      "Manual save (game closed)",
	ReasonHotkey:           "Manual F5 save",
	ReasonPoll:             "Runtime poll (temporary)",
	ReasonPreRestoreBackup: "Automatic backup before restore",
	ReasonPreRaidAuto:      "Last automatic save before raid",
	ReasonUnknown:          "Unknown",
}

func (b Bucket) Valid() bool {
	for _, k := range allBuckets {
		if k == b {
			return true
		}
	}
	return false
}

func (b Bucket) Label() string {
	if l, ok := bucketLabels[b]; ok {
		return l
	}
	return string(b)
}

// ReasonLabel maps a reason tag to a human label; unknown tags pass through.
func ReasonLabel(reason string) string {
	if l, ok := reasonLabels[reason]; ok {
		return l
	}
	return reason
}

// ParseBucket accepts the directory name of a bucket.
func ParseBucket(s string) (Bucket, error) {
	b := Bucket(s)
	if !b.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownBucket, s)
	}
	return b, nil
}
