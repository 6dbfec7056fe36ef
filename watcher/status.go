package watcher

import (
	mapset "github.com/deckarep/golang-set/v2"

	walletsdk "github.com/marwen-abid/wallet-sdk-go"
)

// Class groups transaction statuses by what a watcher does with them.
type Class int

const (
	// InProgress statuses keep a watch alive.
	InProgress Class = iota
	// TerminalSuccess statuses end a single-transaction watch through onSuccess.
	TerminalSuccess
	// TerminalError statuses are reported through onError.
	TerminalError
)

func (c Class) String() string {
	switch c {
	case InProgress:
		return "in_progress"
	case TerminalSuccess:
		return "terminal_success"
	default:
		return "terminal_error"
	}
}

var (
	inProgressStatuses = mapset.NewThreadUnsafeSet(
		walletsdk.StatusIncomplete,
		walletsdk.StatusOnHold,
	)

	// expired counts as success for historical reasons; see DESIGN.md.
	successStatuses = mapset.NewThreadUnsafeSet(
		walletsdk.StatusCompleted,
		walletsdk.StatusRefunded,
		walletsdk.StatusExpired,
	)

	errorStatuses = mapset.NewThreadUnsafeSet(
		walletsdk.StatusError,
		walletsdk.StatusNoMarket,
		walletsdk.StatusTooSmall,
		walletsdk.StatusTooLarge,
	)

	// lateTerminalStatuses are reported when a transaction shows up for the
	// first time after the initial poll, already finished.
	lateTerminalStatuses = mapset.NewThreadUnsafeSet(
		walletsdk.StatusCompleted,
		walletsdk.StatusRefunded,
		walletsdk.StatusExpired,
		walletsdk.StatusError,
	)
)

// Classify maps an anchor status onto a watcher Class. Unknown statuses are
// treated as TerminalError so a watch never spins on a value it cannot read.
func Classify(status walletsdk.TransactionStatus) Class {
	switch {
	case status.IsPending() || inProgressStatuses.Contains(status):
		return InProgress
	case successStatuses.Contains(status):
		return TerminalSuccess
	case errorStatuses.Contains(status):
		return TerminalError
	default:
		return TerminalError
	}
}
