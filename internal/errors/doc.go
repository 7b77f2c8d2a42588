// Package errors provides structured, actionable error messages for rally.
//
// Every error carries a stable code that maps to a short message, a longer
// explanation, and a documentation link:
//
//   - R0xx: configuration (rally.json, flags, environment)
//   - R1xx: commits to the league backend
//   - R2xx: page loading and live sessions
//   - R3xx: command line usage
//
// Commit errors from the optimistic controller are mapped with FromCommit:
//
//	if _, err := ctl.Dispatch(ctx, ev); err != nil {
//	    errors.PrintError(os.Stderr, errors.FromCommit(err))
//	}
//	// Output:
//	// ERROR R102: Rejected by server
//	//
//	//   Results posted — availability is closed
//	//
//	//   Learn more: https://github.com/royals-league/rally/blob/main/docs/errors.md#r102
package errors
