package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyProject    = "project"
	KeyArtifact   = "artifact"
	KeyTier       = "tier"
	KeyHash       = "hash"
	KeyOldHash    = "old_hash"
	KeyNewHash    = "new_hash"
	KeyTarget     = "target_hash"
	KeyAction     = "action"
	KeyJobID      = "job_id"
	KeyPending    = "pending_count"
	KeyPath       = "path"
	KeyOp         = "op"
	KeyDurationMS = "duration_ms"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyRemoteAddr = "remote_addr"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Project(p string) slog.Attr      { return slog.String(KeyProject, p) }
func Artifact(a string) slog.Attr     { return slog.String(KeyArtifact, a) }
func Tier(t string) slog.Attr         { return slog.String(KeyTier, t) }
func Hash(h string) slog.Attr         { return slog.String(KeyHash, h) }
func OldHash(h string) slog.Attr      { return slog.String(KeyOldHash, h) }
func NewHash(h string) slog.Attr      { return slog.String(KeyNewHash, h) }
func Target(h string) slog.Attr       { return slog.String(KeyTarget, h) }
func Action(a string) slog.Attr       { return slog.String(KeyAction, a) }
func JobID(id string) slog.Attr       { return slog.String(KeyJobID, id) }
func Pending(n int) slog.Attr         { return slog.Int(KeyPending, n) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Op(op string) slog.Attr          { return slog.String(KeyOp, op) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func RemoteAddr(a string) slog.Attr   { return slog.String(KeyRemoteAddr, a) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
