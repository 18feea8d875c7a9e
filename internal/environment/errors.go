package environment

import "github.com/vektah/gqlparser/v2/gqlerror"

// GraphQLError is the failure of a handle whose response carried an errors
// array. Message is the first error's message.
type GraphQLError struct {
	Message string
	Errors  gqlerror.List
}

func (e *GraphQLError) Error() string { return e.Message }

func newGraphQLError(list gqlerror.List) *GraphQLError {
	msg := "unknown GraphQL error"
	if len(list) > 0 && list[0] != nil {
		msg = list[0].Message
	}
	return &GraphQLError{Message: msg, Errors: list}
}
