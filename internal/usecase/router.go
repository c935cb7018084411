package usecase

import "strings"

// Opaque callback tokens shared with the transport keyboards.
const (
	tokenAddPlace    = "add_place"
	tokenListPlaces  = "list_places"
	tokenEditPlace   = "edit_place"
	tokenMore        = "more"
	tokenStop        = "stop"
	tokenSkip        = "skip"
	tokenCancel      = "cancel"
	tokenEditConfirm = "edit_confirm"
	tokenEditDecline = "edit_decline"

	vibeTokenPrefix = "vibe:"
	typeTokenPrefix = "type:"
)

// intent is a conversation-level meaning of a button token.
type intent int

const (
	intentNone intent = iota
	intentAddPlace
	intentListPlaces
	intentEditPlace
	intentMore
	intentStop
	intentSkip
	intentCancel
	intentEditConfirm
	intentEditDecline
	intentChooseVibe
	intentChooseType
)

// routeToken maps an opaque button token to a conversation intent and
// optional argument, keeping the transport's event shape out of the
// state machine.
func routeToken(token string) (intent, string) {
	switch {
	case strings.HasPrefix(token, vibeTokenPrefix):
		return intentChooseVibe, strings.TrimPrefix(token, vibeTokenPrefix)
	case strings.HasPrefix(token, typeTokenPrefix):
		return intentChooseType, strings.TrimPrefix(token, typeTokenPrefix)
	}
	switch token {
	case tokenAddPlace:
		return intentAddPlace, ""
	case tokenListPlaces:
		return intentListPlaces, ""
	case tokenEditPlace:
		return intentEditPlace, ""
	case tokenMore:
		return intentMore, ""
	case tokenStop:
		return intentStop, ""
	case tokenSkip:
		return intentSkip, ""
	case tokenCancel:
		return intentCancel, ""
	case tokenEditConfirm:
		return intentEditConfirm, ""
	case tokenEditDecline:
		return intentEditDecline, ""
	}
	return intentNone, ""
}
