package otp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/otp-auth-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockStore struct{ mock.Mock }

func (m *mockStore) Put(ctx context.Context, rec *domain.OtpRecord) error {
	return m.Called(ctx, rec).Error(0)
}
func (m *mockStore) Get(ctx context.Context, identifier, code string) (*domain.OtpRecord, error) {
	args := m.Called(ctx, identifier, code)
	if rec, _ := args.Get(0).(*domain.OtpRecord); rec != nil {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockStore) Consume(ctx context.Context, identifier, code string) error {
	return m.Called(ctx, identifier, code).Error(0)
}
func (m *mockStore) LatestLive(ctx context.Context, identifier string, now int64) (*domain.OtpRecord, error) {
	args := m.Called(ctx, identifier, now)
	if rec, _ := args.Get(0).(*domain.OtpRecord); rec != nil {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, bodyHTML string) error {
	return m.Called(to, subject, bodyHTML).Error(0)
}

type mockSMS struct{ mock.Mock }

func (m *mockSMS) SendSMS(ctx context.Context, to, message string) error {
	return m.Called(ctx, to, message).Error(0)
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(st *mockStore, ml *mockMailer, sms *mockSMS, channel string) Service {
	return NewService(ServiceDeps{
		Store:   st,
		Mailer:  ml,
		SMS:     sms,
		Channel: channel,
		Now:     func() time.Time { return fixedNow },
	})
}

// --- Issue ---

func TestIssue_PersistsAndDeliversCode(t *testing.T) {
	st := &mockStore{}
	ml := &mockMailer{}

	var saved *domain.OtpRecord
	st.On("Put", mock.Anything, mock.AnythingOfType("*domain.OtpRecord")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*domain.OtpRecord) }).
		Return(nil)
	ml.On("SendEmail", "a@x.com", "Your verification code", mock.Anything).Return(nil)

	svc := newTestService(st, ml, nil, ChannelEmail)
	rec, err := svc.Issue(context.Background(), " A@X.com ", domain.AccountTypeClient, domain.OtpAux{SourceURL: "https://client.example/signup"})

	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "a@x.com", rec.Identifier)
	assert.Equal(t, domain.AccountTypeClient, rec.AccountType)
	assert.False(t, rec.Consumed)
	assert.Equal(t, fixedNow.Unix(), rec.IssuedAt)
	assert.Equal(t, fixedNow.Add(10*time.Minute).Unix(), rec.ExpiresAt)

	require.Len(t, rec.Code, 6)
	n, convErr := strconv.Atoi(rec.Code)
	require.NoError(t, convErr)
	assert.GreaterOrEqual(t, n, 100000)
	assert.LessOrEqual(t, n, 999999)

	// The delivered body must carry the generated code.
	body := ml.Calls[0].Arguments.String(2)
	assert.Contains(t, body, rec.Code)
}

func TestIssue_DeliveryFailure_RecordStaysValid(t *testing.T) {
	st := &mockStore{}
	ml := &mockMailer{}

	st.On("Put", mock.Anything, mock.Anything).Return(nil)
	ml.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp refused"))

	svc := newTestService(st, ml, nil, ChannelEmail)
	rec, err := svc.Issue(context.Background(), "a@x.com", domain.AccountTypeUser, domain.OtpAux{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDeliveryFailed))
	// The record was persisted before delivery; a resend can follow.
	require.NotNil(t, rec)
	st.AssertCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestIssue_StoreFailure(t *testing.T) {
	st := &mockStore{}
	st.On("Put", mock.Anything, mock.Anything).Return(errors.New("dynamo down"))

	svc := newTestService(st, &mockMailer{}, nil, ChannelEmail)
	_, err := svc.Issue(context.Background(), "a@x.com", domain.AccountTypeUser, domain.OtpAux{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrStoreUnavailable))
}

func TestIssue_SMSChannel(t *testing.T) {
	st := &mockStore{}
	sms := &mockSMS{}

	st.On("Put", mock.Anything, mock.Anything).Return(nil)
	sms.On("SendSMS", mock.Anything, "+15550001111", mock.Anything).Return(nil)

	svc := newTestService(st, &mockMailer{}, sms, ChannelSMS)
	rec, err := svc.Issue(context.Background(), "+15550001111", domain.AccountTypeUser, domain.OtpAux{})

	require.NoError(t, err)
	msg := sms.Calls[0].Arguments.String(2)
	assert.Contains(t, msg, rec.Code)
}

func TestIssue_ConfiguredLifetime(t *testing.T) {
	st := &mockStore{}
	ml := &mockMailer{}

	st.On("Put", mock.Anything, mock.Anything).Return(nil)
	ml.On("SendEmail", "a@x.com", mock.Anything, mock.Anything).Return(nil)

	svc := NewService(ServiceDeps{
		Store:    st,
		Mailer:   ml,
		Lifetime: 5 * time.Minute,
		Now:      func() time.Time { return fixedNow },
	})
	rec, err := svc.Issue(context.Background(), "a@x.com", domain.AccountTypeUser, domain.OtpAux{})

	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(5*time.Minute).Unix(), rec.ExpiresAt)
}

// --- Verify ---

func liveRecord(code string) *domain.OtpRecord {
	return &domain.OtpRecord{
		Identifier:  "a@x.com",
		Code:        code,
		IssuedAt:    fixedNow.Add(-time.Minute).Unix(),
		ExpiresAt:   fixedNow.Add(9 * time.Minute).Unix(),
		AccountType: domain.AccountTypeClient,
	}
}

func TestVerify_HappyPath_ConsumesOnce(t *testing.T) {
	st := &mockStore{}
	st.On("Get", mock.Anything, "a@x.com", "123456").Return(liveRecord("123456"), nil)
	st.On("Consume", mock.Anything, "a@x.com", "123456").Return(nil)

	svc := newTestService(st, &mockMailer{}, nil, ChannelEmail)
	rec, err := svc.Verify(context.Background(), "A@x.com", "123456")

	require.NoError(t, err)
	assert.True(t, rec.Consumed)
	assert.Equal(t, domain.AccountTypeClient, rec.AccountType)
	st.AssertNumberOfCalls(t, "Consume", 1)
}

func TestVerify_UnknownCode_OpaqueError(t *testing.T) {
	st := &mockStore{}
	st.On("Get", mock.Anything, "a@x.com", "000000").
		Return(nil, fmt.Errorf("missing: %w", domain.ErrNotFound))

	svc := newTestService(st, &mockMailer{}, nil, ChannelEmail)
	_, err := svc.Verify(context.Background(), "a@x.com", "000000")

	assert.ErrorIs(t, err, domain.ErrInvalidOrExpired)
}

func TestVerify_Expired_OpaqueError(t *testing.T) {
	rec := liveRecord("123456")
	rec.ExpiresAt = fixedNow.Add(-time.Second).Unix()

	st := &mockStore{}
	st.On("Get", mock.Anything, "a@x.com", "123456").Return(rec, nil)

	svc := newTestService(st, &mockMailer{}, nil, ChannelEmail)
	_, err := svc.Verify(context.Background(), "a@x.com", "123456")

	assert.ErrorIs(t, err, domain.ErrInvalidOrExpired)
	st.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerify_AlreadyConsumed_OpaqueError(t *testing.T) {
	rec := liveRecord("123456")
	rec.Consumed = true

	st := &mockStore{}
	st.On("Get", mock.Anything, "a@x.com", "123456").Return(rec, nil)

	svc := newTestService(st, &mockMailer{}, nil, ChannelEmail)
	_, err := svc.Verify(context.Background(), "a@x.com", "123456")

	assert.ErrorIs(t, err, domain.ErrInvalidOrExpired)
}

func TestVerify_RaceLoser_OpaqueError(t *testing.T) {
	// A concurrent verify flipped the flag between Get and Consume: the
	// conditional update fails and the caller sees the same opaque error.
	st := &mockStore{}
	st.On("Get", mock.Anything, "a@x.com", "123456").Return(liveRecord("123456"), nil)
	st.On("Consume", mock.Anything, "a@x.com", "123456").
		Return(fmt.Errorf("condition failed: %w", domain.ErrNotFound))

	svc := newTestService(st, &mockMailer{}, nil, ChannelEmail)
	_, err := svc.Verify(context.Background(), "a@x.com", "123456")

	assert.ErrorIs(t, err, domain.ErrInvalidOrExpired)
}

func TestVerify_StoreOutage_IsNotOpaque(t *testing.T) {
	st := &mockStore{}
	st.On("Get", mock.Anything, "a@x.com", "123456").Return(nil, errors.New("dynamo down"))

	svc := newTestService(st, &mockMailer{}, nil, ChannelEmail)
	_, err := svc.Verify(context.Background(), "a@x.com", "123456")

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
