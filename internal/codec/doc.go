// Package codec converts between AMQP typed header values, message bodies and
// their JSON renderings.
//
// Header values are modelled by the closed Value type. Raw "Key: Value"
// strings from the command line are narrowed to Bool, Double or LongString
// by ParseHeader; values received from the broker are converted with
// FromAMQP / FromTable and rendered with Value.JSON.
//
// Bodies are decoded by content type:
//   - application/json: parsed as a JSON document
//   - text/*: kept as a UTF-8 string
//   - anything else: base64 encoded
package codec
