package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clipframe/clipframe/internal/apperr"
)

// Manager owns session state and artifact files.
type Manager struct {
	repo   Repository
	ns     Namespaces
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(repo Repository, ns Namespaces, logger *slog.Logger) *Manager {
	return &Manager{repo: repo, ns: ns, logger: logger, now: time.Now}
}

func (m *Manager) Namespaces() Namespaces { return m.ns }

// Open starts a session for a new upload.
func (m *Manager) Open(ctx context.Context, originalName string) (*Session, error) {
	now := m.now()
	s := &Session{
		ID:           NewID(),
		OriginalName: originalName,
		State:        StateUploaded,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.repo.CreateSession(ctx, s); err != nil {
		return nil, apperr.Unexpected("cannot record upload", err)
	}
	return s, nil
}

// Active returns the session id unless it is unknown or already cleaned.
func (m *Manager) Active(ctx context.Context, id string) (*Session, error) {
	s, err := m.repo.GetSession(ctx, id)
	if err != nil {
		return nil, apperr.Unexpected("cannot load session", err)
	}
	if s == nil || s.State == StateCleaned {
		return nil, apperr.NotFound("File not found")
	}
	return s, nil
}

// Transition moves session id to state to. cause, when non-nil, is recorded
// as the session's last error.
func (m *Manager) Transition(ctx context.Context, id string, to State, cause error) error {
	s, err := m.repo.GetSession(ctx, id)
	if err != nil {
		return fmt.Errorf("load session %s: %w", id, err)
	}
	if s == nil {
		return apperr.NotFound("session %s not found", id)
	}
	if err := checkTransition(s.State, to); err != nil {
		return err
	}

	var lastError string
	if cause != nil {
		lastError = cause.Error()
	}
	if err := m.repo.UpdateSessionState(ctx, id, s.State, to, lastError, m.now()); err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	m.logger.Debug("session transition", "session_id", id, "from", s.State, "to", to)
	return nil
}

// SetDimensions records the probed size of the session's source.
func (m *Manager) SetDimensions(ctx context.Context, id string, width, height int) error {
	return m.repo.UpdateSessionDimensions(ctx, id, width, height, m.now())
}

// Reserve records an artifact of role called name for session and returns
// it with its path inside the role's namespace. The file is not created.
func (m *Manager) Reserve(ctx context.Context, sessionID string, role Role, name string) (*Artifact, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	a := &Artifact{
		Token:     NewID(),
		SessionID: sessionID,
		Role:      role,
		Name:      name,
		Path:      filepath.Join(m.ns.Dir(role), name),
		CreatedAt: m.now(),
	}
	if err := m.repo.CreateArtifact(ctx, a); err != nil {
		return nil, apperr.Unexpected("cannot reserve "+string(role)+" file", err)
	}
	return a, nil
}

// Artifacts lists the session's artifacts, optionally only of roles.
func (m *Manager) Artifacts(ctx context.Context, sessionID string, roles ...Role) ([]*Artifact, error) {
	return m.repo.ListArtifacts(ctx, sessionID, roles...)
}

// Lookup finds a downloadable artifact by file name, outputs first.
func (m *Manager) Lookup(ctx context.Context, name string) (*Artifact, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	a, err := m.repo.FindArtifactByName(ctx, name, RoleOutput, RoleTranscript)
	if err != nil {
		return nil, apperr.Unexpected("cannot look up file", err)
	}
	if a == nil {
		return nil, apperr.NotFound("File not found")
	}
	return a, nil
}

// Release deletes the artifact's file and index row. A file that is already
// gone is not a failure.
func (m *Manager) Release(ctx context.Context, a *Artifact) CleanupReport {
	var report CleanupReport
	if a == nil {
		return report
	}

	err := os.Remove(a.Path)
	switch {
	case err == nil:
		report.Removed = append(report.Removed, a.Path)
	case errors.Is(err, fs.ErrNotExist):
	default:
		m.logger.Warn("cleanup failed", "session_id", a.SessionID, "role", a.Role, "path", a.Name, "error", err)
		report.Failed = append(report.Failed, CleanupFailure{Path: a.Path, Error: err.Error()})
		return report
	}

	if err := m.repo.DeleteArtifact(ctx, a.Token); err != nil {
		m.logger.Warn("cannot drop artifact record", "session_id", a.SessionID, "token", a.Token, "error", err)
	}
	return report
}

// ReleaseRoles releases every artifact of the session in roles.
func (m *Manager) ReleaseRoles(ctx context.Context, sessionID string, roles ...Role) CleanupReport {
	var report CleanupReport
	arts, err := m.repo.ListArtifacts(ctx, sessionID, roles...)
	if err != nil {
		m.logger.Warn("cannot list artifacts for cleanup", "session_id", sessionID, "error", err)
		report.Failed = append(report.Failed, CleanupFailure{Path: sessionID, Error: err.Error()})
		return report
	}
	for _, a := range arts {
		report.Merge(m.Release(ctx, a))
	}
	return report
}

// Confirm marks the user's download as done: every file of the session is
// deleted and the session is cleaned. Unknown and already cleaned sessions
// are a no-op.
func (m *Manager) Confirm(ctx context.Context, id string) (CleanupReport, error) {
	s, err := m.repo.GetSession(ctx, id)
	if err != nil {
		return CleanupReport{}, apperr.Unexpected("cannot load session", err)
	}
	if s == nil || s.State == StateCleaned {
		return CleanupReport{}, nil
	}
	if s.State == StateProcessing {
		return CleanupReport{}, apperr.Validation("file is still being processed")
	}

	if err := m.repo.UpdateSessionState(ctx, id, s.State, StateCleaned, "", m.now()); err != nil {
		if errors.Is(err, ErrStateConflict) {
			return m.Confirm(ctx, id)
		}
		return CleanupReport{}, apperr.Unexpected("cannot mark session cleaned", err)
	}
	report := m.ReleaseRoles(ctx, id)
	m.logger.Info("download confirmed", "session_id", id, "cleanup", report.Outcome())
	return report, nil
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	Sessions int           `json:"sessions"`
	Orphans  int           `json:"orphans"`
	Cleanup  CleanupReport `json:"cleanup"`
}

// sweepable are the states a session can idle in indefinitely.
var sweepable = []State{StateUploaded, StateProbed, StateCompleted, StateFailed}

// Sweep evicts sessions idle for longer than ttl, then files in the
// namespaces older than ttl that no session owns. ttl <= 0 does nothing.
func (m *Manager) Sweep(ctx context.Context, ttl time.Duration) (SweepReport, error) {
	var out SweepReport
	if ttl <= 0 {
		return out, nil
	}
	cutoff := m.now().Add(-ttl)

	sessions, err := m.repo.ListSessionsBefore(ctx, sweepable, cutoff)
	if err != nil {
		return out, fmt.Errorf("list idle sessions: %w", err)
	}
	for _, s := range sessions {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		// Files are only released once the session is cleaned from the state
		// it was listed in; a request that picked it up since keeps them.
		if err := m.repo.UpdateSessionState(ctx, s.ID, s.State, StateCleaned, "", m.now()); err != nil {
			m.logger.Debug("sweep skipped session", "session_id", s.ID, "error", err)
			continue
		}
		out.Cleanup.Merge(m.ReleaseRoles(ctx, s.ID))
		out.Sessions++
	}

	for _, dir := range []string{m.ns.Uploads, m.ns.Outputs, m.ns.Transcripts} {
		n, report := m.sweepOrphans(ctx, dir, cutoff)
		out.Orphans += n
		out.Cleanup.Merge(report)
	}

	if out.Sessions > 0 || out.Orphans > 0 {
		m.logger.Info("sweep complete",
			"sessions", out.Sessions,
			"orphans", out.Orphans,
			"cleanup", out.Cleanup.Outcome(),
		)
	}
	return out, nil
}

func (m *Manager) sweepOrphans(ctx context.Context, dir string, cutoff time.Time) (int, CleanupReport) {
	var report CleanupReport
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			m.logger.Warn("cannot read namespace", "dir", dir, "error", err)
		}
		return 0, report
	}

	n := 0
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".write-check-") {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		owned, err := m.repo.HasArtifactPath(ctx, path)
		if err != nil || owned {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			report.Failed = append(report.Failed, CleanupFailure{Path: path, Error: err.Error()})
			continue
		}
		report.Removed = append(report.Removed, path)
		n++
	}
	return n, report
}
