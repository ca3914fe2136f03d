package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodePositionNotFound, "no position for symbol %s", "BTCUSDT")
	suite.NotNil(err)
	suite.Equal(ErrCodePositionNotFound, err.Code)
	suite.Equal("no position for symbol BTCUSDT", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeExchangeRequest, "failed to fetch account", cause)
	suite.NotNil(err)
	suite.Equal(ErrCodeExchangeRequest, err.Code)
	suite.Equal("failed to fetch account", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("underlying error")
	err := Wrapf(ErrCodeOrderFailed, cause, "order %s failed", "abc-123")
	suite.NotNil(err)
	suite.Equal(ErrCodeOrderFailed, err.Code)
	suite.Equal("order abc-123 failed", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal("[100] invalid parameter", err.Error())
}

func (suite *ErrorTestSuite) TestErrorStringWithCause() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeExchangeUnavailable, "venue unreachable", cause)
	suite.Equal("[200] venue unreachable: underlying error", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeExchangeRequest, "request failed", cause)
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestUnwrapNil() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Nil(err.Unwrap())
}

func (suite *ErrorTestSuite) TestGetCode() {
	err := New(ErrCodeTradingDisabled, "trading disabled")
	suite.Equal(ErrCodeTradingDisabled, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromWrapped() {
	inner := New(ErrCodePositionConflict, "opposite side position exists")
	outer := fmt.Errorf("apply failed: %w", inner)
	suite.Equal(ErrCodePositionConflict, GetCode(outer))
}

func (suite *ErrorTestSuite) TestGetCodeNonStructured() {
	err := errors.New("plain error")
	suite.Equal(ErrCodeUnknown, GetCode(err))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeRetriesExhausted, "gave up after 3 attempts")
	suite.True(HasCode(err, ErrCodeRetriesExhausted))
	suite.False(HasCode(err, ErrCodeOrderFailed))
}

func (suite *ErrorTestSuite) TestTransientError() {
	cause := errors.New("connection reset")
	err := NewTransientError("create_order", "BTCUSDT", "request failed", cause)
	suite.Equal("create_order: request failed: connection reset", err.Error())
	suite.Equal(cause, err.Unwrap())
	suite.True(IsTransient(err))
}

func (suite *ErrorTestSuite) TestTransientErrorWrapped() {
	transient := NewTransientError("get_positions", "", "timeout", nil)
	wrapped := Wrap(ErrCodeExchangeTimeout, "reconciliation failed", transient)
	suite.True(IsTransient(wrapped))
}

func (suite *ErrorTestSuite) TestIsTransientPlainError() {
	suite.False(IsTransient(errors.New("plain error")))
	suite.False(IsTransient(nil))
}
