package client

import (
	"context"
	"testing"
	"time"

	"github.com/queryloom/queryloom/app/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegistrationForm() *RegistrationForm {
	return &RegistrationForm{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           "ada@example.com",
		PhoneNumber:     "2125551234",
		CountryCode:     "US",
		Password:        "Str0ngPass",
		ConfirmPassword: "Str0ngPass",
		TenantID:        "acme",
		AcceptedTerms:   true,
	}
}

func TestRegistrationSubmitValidationGate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(f *RegistrationForm)
		errField string
	}{
		{"missing first name", func(f *RegistrationForm) { f.FirstName = "" }, "first_name"},
		{"bad email", func(f *RegistrationForm) { f.Email = "not-an-email" }, "email"},
		{"short phone", func(f *RegistrationForm) { f.PhoneNumber = "12" }, "phone_number"},
		{"short password", func(f *RegistrationForm) { f.Password = "short"; f.ConfirmPassword = "short" }, "password"},
		{"password mismatch", func(f *RegistrationForm) { f.ConfirmPassword = "Different1" }, "confirm_password"},
		{"missing tenant", func(f *RegistrationForm) { f.TenantID = "" }, "tenant_id"},
		{"terms not accepted", func(f *RegistrationForm) { f.AcceptedTerms = false }, "terms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			reg := NewRegistration(api, "QueryLoom")

			form := validRegistrationForm()
			tt.mutate(form)

			state := reg.Submit(context.Background(), form)
			assert.Equal(t, StepForm, state.Step)
			assert.Contains(t, state.FieldErrors, tt.errField)
			assert.Zero(t, api.sendOTPCalls, "invalid form must not reach the network")
		})
	}
}

func TestRegistrationSubmitSendsFormattedPhone(t *testing.T) {
	var gotPhone, gotSender string
	api := &fakeAPI{
		sendOTPFn: func(ctx context.Context, req *dto.SendOTPRequest) (*dto.SendOTPResponse, error) {
			gotPhone = req.PhoneNumber
			gotSender = req.SenderName
			return &dto.SendOTPResponse{OTPSent: true}, nil
		},
	}
	reg := NewRegistration(api, "QueryLoom")

	state := reg.Submit(context.Background(), validRegistrationForm())
	assert.Equal(t, StepOTP, state.Step)
	assert.True(t, state.OTPSent)
	assert.False(t, state.OTPVerified)
	assert.Equal(t, "1-2125551234", gotPhone)
	assert.Equal(t, "QueryLoom", gotSender)
}

func TestRegistrationSubmitFailureStaysOnForm(t *testing.T) {
	api := &fakeAPI{
		sendOTPFn: func(ctx context.Context, req *dto.SendOTPRequest) (*dto.SendOTPResponse, error) {
			return nil, &APIError{StatusCode: 429, Code: "OTP_COOLDOWN", Message: "wait before retrying"}
		},
	}
	reg := NewRegistration(api, "QueryLoom")

	state := reg.Submit(context.Background(), validRegistrationForm())
	assert.Equal(t, StepForm, state.Step)
	assert.False(t, state.OTPSent)
	assert.NotEmpty(t, state.Error)
}

func TestRegistrationCompleteRequiresVerifiedOTP(t *testing.T) {
	registerCalls := 0
	api := &fakeAPI{
		registerFn: func(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
			registerCalls++
			return &dto.RegisterResponse{AccessToken: "tok"}, nil
		},
	}
	reg := NewRegistration(api, "QueryLoom")

	// On the form step nothing happens.
	state := reg.Complete(context.Background())
	assert.Equal(t, StepForm, state.Step)
	assert.Zero(t, registerCalls)

	state = reg.Submit(context.Background(), validRegistrationForm())
	require.Equal(t, StepOTP, state.Step)

	// OTP sent but not yet verified.
	state = reg.Complete(context.Background())
	assert.Equal(t, StepOTP, state.Step)
	assert.Zero(t, registerCalls)

	state = reg.VerifyOTP(context.Background(), "123456")
	require.True(t, state.OTPVerified)
	assert.Equal(t, StepOTP, state.Step, "verification alone does not finish registration")

	state = reg.Complete(context.Background())
	assert.Equal(t, StepCompleted, state.Step)
	assert.Equal(t, 1, registerCalls)
}

func TestRegistrationResendCooldown(t *testing.T) {
	api := &fakeAPI{}
	reg := NewRegistration(api, "QueryLoom")

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return current }

	state := reg.Submit(context.Background(), validRegistrationForm())
	require.Equal(t, StepOTP, state.Step)
	require.Equal(t, 1, api.sendOTPCalls)

	// Inside the cooldown window the resend is swallowed.
	current = current.Add(10 * time.Second)
	reg.Resend(context.Background())
	assert.Equal(t, 1, api.sendOTPCalls)

	current = current.Add(25 * time.Second)
	state = reg.Resend(context.Background())
	assert.Equal(t, 2, api.sendOTPCalls)
	assert.Equal(t, current.Add(resendCooldown), state.ResendAt)
}

func TestRegistrationBackClearsPendingForm(t *testing.T) {
	api := &fakeAPI{}
	reg := NewRegistration(api, "QueryLoom")

	state := reg.Submit(context.Background(), validRegistrationForm())
	require.Equal(t, StepOTP, state.Step)
	require.NotNil(t, reg.PendingForm())

	state = reg.Back()
	assert.Equal(t, StepForm, state.Step)
	assert.Nil(t, reg.PendingForm())
}
