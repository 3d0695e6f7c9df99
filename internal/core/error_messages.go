package core

// error_messages.go maps technical errors to user-facing messages with codes
// for support reference.
//
// # Configuration Errors (CFG001-CFG099)
//
//	CFG001 - Unknown tool: the tool id is not in the catalogue
//	CFG002 - Unknown master: the master id is not in the catalogue or not owned by the tool
//
// # Download Errors (DL001-DL099)
//
//	DL001 - Master file not found at the publisher
//	DL002 - Publisher answered with an unexpected HTTP status
//	DL003 - Downloaded archive is empty or corrupt
//	DL004 - TLS certificate of the publisher could not be verified
//	DL005 - Master file is in none of the supported encodings
//
// # Store Errors (ST001-ST099)
//
//	ST001 - Store unreachable
//	ST002 - Invalid model name
//
// # Synchronization Errors (SYNC001-SYNC099)
//
//	SYNC001 - Another refresh of the same tool is running
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled
//	REQ002 - Request timed out
//
// # Default Error (ERR000)
//
// Sentinel errors are matched first with errors.Is. Remaining errors are
// matched case-insensitively by substring; the first matching pattern wins.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/mastersync/internal/fetch"
	"github.com/JonMunkholm/mastersync/internal/store"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

var (
	msgUnknownTool = UserMessage{
		Message: "Unknown tool",
		Action:  "List the available tools and check the tool id",
		Code:    "CFG001",
	}
	msgUnknownMaster = UserMessage{
		Message: "Unknown master file",
		Action:  "Check the master id against the tool's master list",
		Code:    "CFG002",
	}
	msgNotFound = UserMessage{
		Message: "Master file not found at the publisher",
		Action:  "The file may not be published yet. Try again later",
		Code:    "DL001",
	}
	msgBadStatus = UserMessage{
		Message: "Master file server returned an error",
		Action:  "Try again in a few minutes",
		Code:    "DL002",
	}
	msgBadArchive = UserMessage{
		Message: "Downloaded master archive is empty or corrupt",
		Action:  "Force a refresh to download it again",
		Code:    "DL003",
	}
	msgTLS = UserMessage{
		Message: "Master file server certificate could not be verified",
		Action:  "Install the publisher's CA certificate or set SYNC_INSECURE_SKIP_VERIFY",
		Code:    "DL004",
	}
	msgUndecodable = UserMessage{
		Message: "Master file is in an unsupported text encoding",
		Action:  "Check the error log for the affected master file",
		Code:    "DL005",
	}
	msgStoreDown = UserMessage{
		Message: "Unable to connect to the instrument store",
		Action:  "Please try again in a few moments",
		Code:    "ST001",
	}
	msgInvalidModel = UserMessage{
		Message: "Invalid instrument table name",
		Action:  "Check the catalogue configuration",
		Code:    "ST002",
	}
	msgBusy = UserMessage{
		Message: "A refresh of this tool is already running",
		Action:  "Wait for it to finish and try again",
		Code:    "SYNC001",
	}
)

// sentinelMessages maps errors matched with errors.Is.
var sentinelMessages = []struct {
	target error
	msg    UserMessage
}{
	{ErrUnknownTool, msgUnknownTool},
	{ErrUnknownMaster, msgUnknownMaster},
	{ErrRefreshBusy, msgBusy},
	{fetch.ErrNotFound, msgNotFound},
	{fetch.ErrEmptyArchive, msgBadArchive},
	{fetch.ErrUndecodable, msgUndecodable},
	{store.ErrInvalidModel, msgInvalidModel},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns are matched against the lowercased error text, in order.
var errorPatterns = []errorPattern{
	{pattern: "unexpected status", msg: msgBadStatus},
	{pattern: "not a valid zip file", msg: msgBadArchive},
	{pattern: "certificate", msg: msgTLS},
	{pattern: "connection refused", msg: msgStoreDown},
	{pattern: "failed to connect", msg: msgStoreDown},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try again later; refreshes of large tools can take a minute",
			Code:    "REQ002",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the error log",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.target) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders MapError's result as a single line.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
