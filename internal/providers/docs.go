/*
Package providers implements the provider adapters of the BYOK router.

An adapter turns a provider-neutral Request (system prompt, messages, model and
connection settings) into one native provider call and returns plain text, either
as a whole or as an ordered stream of deltas.

# Adapter Implementation Guide

All adapters implement the Adapter interface:

	type Adapter interface {
		Name() string
		CompleteText(ctx context.Context, req Request) (string, error)
		StreamTextDeltas(ctx context.Context, req Request) (DeltaStream, error)
	}

Name returns the provider type ("openai_compatible", "anthropic") the adapter is
registered under in the Registry.

## Request Validation

Before any network I/O an adapter checks, in order, the base URL, the API key,
the model and the encoded messages. A missing value yields an
apierr.ConfigurationError naming the field.

## Request Body

The body starts from Request.RequestDefaults. The fields the adapter owns (model,
messages, stream and protocol specific ones such as max_tokens) always overwrite
the defaults.

## Messages

The OpenAI-compatible adapter prepends the system prompt as a system message and
passes tool messages and structured content parts through unchanged. The Anthropic
adapter moves the system prompt to the top-level "system" field and keeps only user
and assistant turns with non-empty text content; tool turns and content parts are
not sent. If nothing is left the call fails with a ConfigurationError.

## Headers

Headers are applied in three layers:

 1. Content-Type: application/json
 2. Request.ExtraHeaders (may replace the content type)
 3. Provider auth headers (always win)

## Responses

A non-2xx status yields an apierr.UpstreamError carrying the status and the first
500 characters of the body. A 2xx response without the expected text field is an
UpstreamError as well.

## Streaming

Streaming adapters read Server-Sent Events through wire.SSEDecoder and map each
data payload to a delta with an eventHandler:

	func handleOpenAIEvent(data string) (delta string, done bool, err error)

Returning done stops the stream at the protocol end marker ("[DONE]" for OpenAI,
"message_stop" for Anthropic) and closes the connection. Returning an error marks
the payload as malformed; it is logged at debug level and skipped. Empty deltas are
never yielded.

A cancelled context ends the stream with io.EOF and no further values. An expired
deadline surfaces as apierr.TimeoutError.

## Testing

Adapters are tested against httptest servers that replay recorded SSE payloads;
see openai_test.go and anthropic_test.go.
*/
package providers
