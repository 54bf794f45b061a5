package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestErrorsTestSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}

type ErrorsTestSuite struct {
	suite.Suite
}

func (s *ErrorsTestSuite) TestClassifySubmitError() {
	require.Nil(s.T(), ClassifySubmitError(nil))

	err := ClassifySubmitError(errors.New("already known"))
	require.ErrorIs(s.T(), err, ErrDuplicate)
	require.ErrorIs(s.T(), err, ErrAlreadyKnown)
	require.True(s.T(), IsPermanentSubmitError(err))

	err = ClassifySubmitError(errors.New("nonce too low: next nonce 5, tx nonce 4"))
	require.ErrorIs(s.T(), err, ErrDuplicate)
	require.NotErrorIs(s.T(), err, ErrAlreadyKnown)

	err = ClassifySubmitError(errors.New("insufficient funds for gas * price + value"))
	require.ErrorIs(s.T(), err, ErrInvalidArgument)
	require.True(s.T(), IsPermanentSubmitError(err))

	err = ClassifySubmitError(errors.New("502 Bad Gateway"))
	require.False(s.T(), IsPermanentSubmitError(err))
}
