package writer

import (
	"errors"
	"net/http"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// transient reports whether a streaming insert failure is worth retrying.
// Aggregate errors are retryable only when every member is.
func transient(err error) bool {
	if err == nil {
		return false
	}

	var multi *cbigquery.MultiError
	if errors.As(err, &multi) && multi != nil {
		return allTransient(len(*multi), func(i int) error { return (*multi)[i] })
	}
	var putErr *cbigquery.PutMultiError
	if errors.As(err, &putErr) && putErr != nil {
		return allTransient(len(*putErr), func(i int) error { return (*putErr)[i].Errors })
	}
	var rowErr *cbigquery.RowInsertionError
	if errors.As(err, &rowErr) && rowErr != nil {
		return allTransient(len(rowErr.Errors), func(i int) error { return rowErr.Errors[i] })
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal,
			codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}

func allTransient(n int, at func(int) error) bool {
	if n == 0 {
		return false
	}
	for i := 0; i < n; i++ {
		if !transient(at(i)) {
			return false
		}
	}
	return true
}
