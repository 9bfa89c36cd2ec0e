package mrfcf

import "errors"

// ErrConfig reports invalid hyperparameters. Training never starts with a
// configuration that fails validation.
var ErrConfig = errors.New("mrfcf: invalid configuration")

// ErrSingular reports a block submatrix that stayed singular after the
// adaptive regularization retries. The run aborts; there is no partial
// result.
var ErrSingular = errors.New("mrfcf: singular block submatrix")
