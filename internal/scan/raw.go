// SPDX-License-Identifier: MIT

package scan

// NetworkErrorMessage is shown when a request never completed.
const NetworkErrorMessage = "Erreur réseau. Veuillez réessayer."

// RawResult is what the request gateway hands to the classifier: the HTTP
// status next to the loosely-typed JSON body. Body is nil when the response
// had no body, was not JSON, or was not a JSON object.
type RawResult struct {
	Status       int
	Body         map[string]any
	NetworkError bool
}

// NetworkFailure builds the synthetic result for a request that never
// completed (transport error, open breaker, cancelled pacing wait).
func NetworkFailure() RawResult {
	return RawResult{
		NetworkError: true,
		Body: map[string]any{
			"status":  "error",
			"message": NetworkErrorMessage,
		},
	}
}
