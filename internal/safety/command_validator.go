// Package safety provides shared safety-related functionality for command execution.
// This file implements the CommandValidator interface for orchestrating command validation.
package safety

// ValidationResult encapsulates the outcome of command validation.
// It provides a unified result that includes whether the command can execute,
// whether it's flagged as dangerous, and any relevant context.
type ValidationResult struct {
	// Allowed indicates whether the command can execute (subject to confirmation if NeedsConfirm is true).
	Allowed bool

	// IsDangerous indicates whether the command matched a dangerous pattern.
	IsDangerous bool

	// Reason provides context for why the command was blocked or flagged as dangerous.
	// Empty string if the command is allowed and not dangerous.
	Reason string

	// NeedsConfirm indicates whether user confirmation is required before execution.
	// This is true for dangerous commands, and for non-whitelisted commands when
	// confirmUnlisted is true.
	NeedsConfirm bool
}

// CommandValidator orchestrates command validation by combining whitelist checks
// and dangerous command pattern detection.
//
// This interface abstracts the validation logic from the execution engine,
// enabling easier testing and clearer separation of concerns.
type CommandValidator interface {
	// Validate checks a command and returns the validation result.
	//
	// Validation behavior depends on the configured mode:
	// - Whitelist mode: Only whitelisted commands are allowed without confirmation.
	//   Non-whitelisted commands require confirmation if confirmUnlisted is true.
	// - Blacklist mode: Commands are allowed unless they match a dangerous pattern,
	//   in which case they require confirmation.
	Validate(command string) ValidationResult
}

// CommandValidatorImpl is the standard implementation of CommandValidator.
// It combines whitelist checking and dangerous pattern detection.
type CommandValidatorImpl struct {
	mode            CommandValidationMode
	whitelist       CommandAllowChecker // uses interface for testability
	confirmUnlisted bool
}

// NewCommandValidator creates a new CommandValidatorImpl.
//
// Parameters:
//   - mode: The validation mode (ModeBlacklist or ModeWhitelist)
//   - whitelist: The whitelist checker (can be nil for blacklist mode)
//   - confirmUnlisted: Whether to ask for confirmation on non-whitelisted commands (whitelist mode only)
//
// Returns an error if whitelist mode is specified but no whitelist is provided.
func NewCommandValidator(
	mode CommandValidationMode,
	whitelist CommandAllowChecker,
	confirmUnlisted bool,
) (*CommandValidatorImpl, error) {
	if mode == ModeWhitelist && whitelist == nil {
		return nil, ErrWhitelistRequired
	}
	return &CommandValidatorImpl{
		mode:            mode,
		whitelist:       whitelist,
		confirmUnlisted: confirmUnlisted,
	}, nil
}

// Validate implements CommandValidator.Validate.
func (v *CommandValidatorImpl) Validate(command string) ValidationResult {
	// Check whitelist mode first
	if v.mode == ModeWhitelist && v.whitelist != nil {
		return v.validateWhitelistMode(command)
	}

	// Blacklist mode: check dangerous patterns
	return v.validateBlacklistMode(command)
}

// validateWhitelistMode handles validation when in whitelist mode.
func (v *CommandValidatorImpl) validateWhitelistMode(command string) ValidationResult {
	// Check if command is whitelisted
	if allowed, _ := v.whitelist.IsAllowedWithPipes(command); allowed {
		// Whitelisted commands execute without confirmation
		return ValidationResult{
			Allowed:      true,
			IsDangerous:  false,
			Reason:       "",
			NeedsConfirm: false,
		}
	}

	// Command is not whitelisted
	if !v.confirmUnlisted {
		// Strict whitelist mode: block non-whitelisted commands
		return ValidationResult{
			Allowed:      false,
			IsDangerous:  false,
			Reason:       "not on whitelist",
			NeedsConfirm: false,
		}
	}

	// confirmUnlisted is true: still require confirmation, flagging it as
	// dangerous too if it also matches a dangerous pattern
	isDangerous, reason := IsDangerousCommand(command)
	if reason == "" {
		reason = "not on whitelist"
	}

	return ValidationResult{
		Allowed:      true, // Can execute if confirmed
		IsDangerous:  isDangerous,
		Reason:       reason,
		NeedsConfirm: true,
	}
}

// validateBlacklistMode handles validation when in blacklist mode.
func (v *CommandValidatorImpl) validateBlacklistMode(command string) ValidationResult {
	if isDangerous, reason := IsDangerousCommand(command); isDangerous {
		// Dangerous command: require confirmation
		return ValidationResult{
			Allowed:      true, // Can execute if confirmed
			IsDangerous:  true,
			Reason:       reason,
			NeedsConfirm: true,
		}
	}

	// Safe command: execute without confirmation
	return ValidationResult{
		Allowed:      true,
		IsDangerous:  false,
		Reason:       "",
		NeedsConfirm: false,
	}
}

// Mode returns the validation mode.
func (v *CommandValidatorImpl) Mode() CommandValidationMode {
	return v.mode
}

// ConfirmUnlisted returns whether to ask for confirmation on non-whitelisted commands.
// This is a test-only accessor for verifying constructor behavior.
func (v *CommandValidatorImpl) ConfirmUnlisted() bool {
	return v.confirmUnlisted
}
