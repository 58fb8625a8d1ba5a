package client

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/queryloom/queryloom/app/dto"
	"github.com/queryloom/queryloom/phone"
)

// Registration steps. Forward movement is form -> otp -> completed; Back
// returns otp -> form and Reset returns any step to form.
const (
	StepForm      = "form"
	StepOTP       = "otp"
	StepCompleted = "completed"
)

const resendCooldown = 30 * time.Second

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// RegistrationForm is the data entered on the registration form
type RegistrationForm struct {
	FirstName       string
	LastName        string
	Email           string
	PhoneNumber     string // raw, as typed
	CountryCode     string // ISO country code for phone validation
	Password        string
	ConfirmPassword string
	TenantID        string
	AcceptedTerms   bool
}

// RegistrationState is a snapshot of the state machine, returned by every
// operation so callers can render it.
type RegistrationState struct {
	Step        string
	OTPSent     bool
	OTPVerified bool
	Loading     bool
	Error       string
	FieldErrors map[string]string
	ResendAt    time.Time
}

// Registration drives the two-phase signup: verify the phone first, then
// create the account. Illegal transitions are silent no-ops returning the
// unchanged state.
type Registration struct {
	api        APIClient
	senderName string
	now        func() time.Time

	state   RegistrationState
	pending *RegistrationForm
	payload string // normalized phone payload, e.g. "1-2125551234"
}

// NewRegistration creates a registration state machine in the form step
func NewRegistration(api APIClient, senderName string) *Registration {
	if senderName == "" {
		senderName = "QueryLoom"
	}
	return &Registration{
		api:        api,
		senderName: senderName,
		now:        time.Now,
		state:      RegistrationState{Step: StepForm},
	}
}

// State returns the current state snapshot
func (r *Registration) State() RegistrationState {
	return r.state
}

// PendingForm returns the form data stored by a successful Submit, or nil
func (r *Registration) PendingForm() *RegistrationForm {
	return r.pending
}

// validateForm checks every field locally. No network call is made while
// any field error remains.
func (r *Registration) validateForm(form *RegistrationForm) map[string]string {
	errs := make(map[string]string)

	if strings.TrimSpace(form.FirstName) == "" {
		errs["first_name"] = "First name is required"
	}
	if strings.TrimSpace(form.LastName) == "" {
		errs["last_name"] = "Last name is required"
	}
	if !emailPattern.MatchString(form.Email) {
		errs["email"] = "A valid email address is required"
	}
	if result := phone.Validate(form.PhoneNumber, form.CountryCode); !result.Valid {
		errs["phone_number"] = result.Error
	}
	if len(form.Password) < 8 {
		errs["password"] = "Password must be at least 8 characters"
	}
	if form.Password != form.ConfirmPassword {
		errs["confirm_password"] = "Passwords do not match"
	}
	if strings.TrimSpace(form.TenantID) == "" {
		errs["tenant_id"] = "Tenant is required"
	}
	if !form.AcceptedTerms {
		errs["terms"] = "You must accept the terms to continue"
	}

	return errs
}

// phonePayload builds the wire form of the phone number: dial code without
// the plus, a dash, then the cleaned national digits.
func phonePayload(form *RegistrationForm) string {
	digits := phone.Clean(form.PhoneNumber)
	rule := phone.RuleFor(form.CountryCode)
	if rule == nil {
		return digits
	}
	return strings.TrimPrefix(rule.DialCode, "+") + "-" + digits
}

// Submit validates the form and, when everything passes, requests an OTP.
// On success the machine advances to the otp step with the form data held
// for the later register call. On failure it stays in form with the error
// set.
func (r *Registration) Submit(ctx context.Context, form *RegistrationForm) RegistrationState {
	if r.state.Step != StepForm || r.state.Loading {
		return r.state
	}

	if errs := r.validateForm(form); len(errs) > 0 {
		r.state.FieldErrors = errs
		r.state.Error = ""
		return r.state
	}
	r.state.FieldErrors = nil

	payload := phonePayload(form)

	r.state.Loading = true
	_, err := r.api.SendOTP(ctx, &dto.SendOTPRequest{
		PhoneNumber: payload,
		SenderName:  r.senderName,
	})
	r.state.Loading = false

	if err != nil {
		r.state.Error = err.Error()
		return r.state
	}

	formCopy := *form
	r.pending = &formCopy
	r.payload = payload
	r.state.Step = StepOTP
	r.state.OTPSent = true
	r.state.OTPVerified = false
	r.state.Error = ""
	r.state.ResendAt = r.now().Add(resendCooldown)
	return r.state
}

// VerifyOTP checks the code. Success marks the phone verified but stays in
// the otp step; account creation is a separate explicit Complete call.
func (r *Registration) VerifyOTP(ctx context.Context, code string) RegistrationState {
	if r.state.Step != StepOTP || r.state.Loading {
		return r.state
	}

	r.state.Loading = true
	_, err := r.api.VerifyOTP(ctx, &dto.VerifyOTPRequest{
		PhoneNumber: r.payload,
		OTPCode:     code,
	})
	r.state.Loading = false

	if err != nil {
		r.state.Error = err.Error()
		return r.state
	}

	r.state.OTPVerified = true
	r.state.Error = ""
	return r.state
}

// Resend re-requests the OTP for the stored contact info, honoring the
// client-side cooldown.
func (r *Registration) Resend(ctx context.Context) RegistrationState {
	if r.state.Step != StepOTP || r.state.Loading {
		return r.state
	}
	if r.now().Before(r.state.ResendAt) {
		return r.state
	}

	r.state.Loading = true
	_, err := r.api.SendOTP(ctx, &dto.SendOTPRequest{
		PhoneNumber: r.payload,
		SenderName:  r.senderName,
	})
	r.state.Loading = false

	if err != nil {
		r.state.Error = err.Error()
		return r.state
	}

	r.state.Error = ""
	r.state.ResendAt = r.now().Add(resendCooldown)
	return r.state
}

// Complete creates the account from the stored form data. It is a no-op
// unless the machine is in the otp step with a verified phone; only a
// successful register call advances to completed.
func (r *Registration) Complete(ctx context.Context) RegistrationState {
	if r.state.Step != StepOTP || !r.state.OTPVerified || r.state.Loading {
		return r.state
	}

	r.state.Loading = true
	_, err := r.api.Register(ctx, &dto.RegisterRequest{
		TenantID:    r.pending.TenantID,
		FirstName:   r.pending.FirstName,
		LastName:    r.pending.LastName,
		Email:       r.pending.Email,
		PhoneNumber: r.payload,
		Password:    r.pending.Password,
	})
	r.state.Loading = false

	if err != nil {
		r.state.Error = err.Error()
		return r.state
	}

	r.state.Step = StepCompleted
	r.state.Error = ""
	return r.state
}

// Back returns from the otp step to the form, dropping the pending data.
// In any other step it is a no-op.
func (r *Registration) Back() RegistrationState {
	if r.state.Step != StepOTP || r.state.Loading {
		return r.state
	}
	r.pending = nil
	r.payload = ""
	r.state = RegistrationState{Step: StepForm}
	return r.state
}

// Reset returns the machine to the form step from any state
func (r *Registration) Reset() RegistrationState {
	r.pending = nil
	r.payload = ""
	r.state = RegistrationState{Step: StepForm}
	return r.state
}
