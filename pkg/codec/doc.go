// Package codec implements the stable byte encoding of Field and Record
// values: a fixed discriminator per variant, big-endian numeric bodies so encoded order
// matches semantic order, and length-prefixed bodies for variable-width
// types. The same EncodeField/DecodeField pair backs record value
// encoding, primary-key encoding, and composite sorted-index key
// encoding (direction-complemented by the index layer where needed).
package codec
