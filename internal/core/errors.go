package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTool is returned for a tool id missing from the catalogue.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrUnknownMaster is returned for a master id missing from the catalogue
	// or not owned by the requested tool.
	ErrUnknownMaster = errors.New("unknown master")

	// ErrRefreshBusy is returned when another refresh of the same tool holds
	// the lease past the wait limit.
	ErrRefreshBusy = errors.New("refresh already in progress")
)

// Kind classifies synchronization failures.
type Kind string

const (
	// KindConfiguration: unknown master or tool. Fatal to the operation, never retried.
	KindConfiguration Kind = "configuration"
	// KindDownload: hard failure, aborts the refresh.
	KindDownload Kind = "download"
	// KindParse: soft failure, the master contributes no rows.
	KindParse Kind = "parse"
	// KindPersistence: hard failure, aborts the refresh.
	KindPersistence Kind = "persistence"
	// KindArtifact: snapshot or working directory cleanup failed. Soft.
	KindArtifact Kind = "artifact"
)

// Hard reports whether failures of this kind abort a refresh.
func (k Kind) Hard() bool {
	switch k {
	case KindConfiguration, KindDownload, KindPersistence:
		return true
	default:
		return false
	}
}

// SyncError describes a failure during one synchronizer operation.
type SyncError struct {
	Kind     Kind
	ToolID   string
	MasterID string
	Op       string
	Err      error
}

func (e *SyncError) Error() string {
	scope := e.ToolID
	if e.MasterID != "" {
		scope += "/" + e.MasterID
	}
	return fmt.Sprintf("%s error in %s (%s): %v", e.Kind, e.Op, scope, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first SyncError in err's chain.
func KindOf(err error) (Kind, bool) {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

func configError(toolID, masterID, op string, err error) *SyncError {
	return &SyncError{Kind: KindConfiguration, ToolID: toolID, MasterID: masterID, Op: op, Err: err}
}
