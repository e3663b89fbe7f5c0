package service

import "errors"

var (
	ErrUserExists              = errors.New("user already exists")
	ErrEmailTaken              = errors.New("email is already in use")
	ErrUserNotFound            = errors.New("user not found")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrAccountNotConfirmed     = errors.New("account not confirmed, a new confirmation code was sent to your email")
	ErrConfirmationPending     = errors.New("account not confirmed, check your email for the confirmation code")
	ErrAccountAlreadyConfirmed = errors.New("account is already confirmed")
	ErrTokenNotFound           = errors.New("invalid or expired token")
	ErrTokenAlreadyIssued      = errors.New("a code was already sent, wait until it expires to request a new one")
	ErrPasswordMismatch        = errors.New("password is incorrect")
	ErrWeakPassword            = errors.New("password does not meet policy requirements")
	ErrInvalidSession          = errors.New("invalid session")
)

var (
	ErrProjectNotFound   = errors.New("project not found")
	ErrTaskNotFound      = errors.New("task not found")
	ErrTaskNotInProject  = errors.New("task does not belong to this project")
	ErrNoteNotFound      = errors.New("note not found")
	ErrNotProjectManager = errors.New("only the project manager can do this")
	ErrNotProjectMember  = errors.New("you are not part of this project")
	ErrAlreadyMember     = errors.New("user is already part of the project")
	ErrManagerCannotJoin = errors.New("the manager already owns the project")
	ErrNotMember         = errors.New("user is not part of the project")
	ErrNotNoteAuthor     = errors.New("only the author can delete a note")
	ErrInvalidTaskStatus = errors.New("invalid task status")
)
