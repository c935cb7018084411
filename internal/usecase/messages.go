package usecase

import (
	"fmt"
	"strings"

	"places-bot/internal/domain"
)

const (
	msgDenied          = "Sorry, you don't have access to this bot."
	msgWelcome         = "Welcome! What would you like to do?"
	msgMenu            = "What would you like to do?"
	msgMenuHint        = "Use the menu to get started."
	msgCancelled       = "Cancelled."
	msgNothingToCancel = "Nothing to cancel."
	msgWrongInput      = "That's not what I expected here."
	msgInternal        = "Something went wrong on my side. Let's start over."

	msgAskName     = "What is the place called?"
	msgAskVibe     = "Pick a vibe:"
	msgAskType     = "Pick a category:"
	msgAskLocation = "Send the place's location."
	msgAskPhoto    = "Send a photo of the place."
	msgAskReview   = "Write a short review of the place."

	msgAskTargetID      = "Send the id of the place you want to edit."
	msgTargetNotNumeric = "The id must be a number. Try again."
	msgTargetNotFound   = "No place with that id. Try another one."
	msgLookupFailed     = "Couldn't look that place up right now. Try again."
	msgEditAskName      = "Send a new name, or skip this field."
	msgEditAskVibe      = "Pick a new vibe, or skip this field."
	msgEditAskType      = "Pick a new category, or skip this field."
	msgEditAskLocation  = "Send a new location, or skip this field."
	msgEditAskPhoto     = "Send a new photo, or skip this field."
	msgEditAskReview    = "Write a new review, or skip this field."
	msgEditNoTarget     = "This edit session lost its target record, so nothing was changed."

	msgPhotoFailed   = "Couldn't store that photo. Please send it again."
	msgSaveFailed    = "Couldn't save the place. Send the review again to retry."
	msgUpdateFailed  = "Couldn't update the place. Try the review step again."
	msgListFailed    = "Couldn't fetch places right now. Try again later."
	msgShareLocation = "Share your location to see places near you."
	msgNoPlaces      = "No places registered yet."
	msgNoMoreResults = "No more results."
)

var vibeLabels = map[domain.Vibe]string{
	domain.VibeLively:    "Lively",
	domain.VibePunk:      "Punk",
	domain.VibeHipster:   "Hipster",
	domain.VibeFamily:    "Family",
	domain.VibeLocal:     "Local",
	domain.VibeTouristic: "Touristic",
	domain.VibeLuxury:    "Luxury",
	domain.VibeRomantic:  "Romantic",
}

var categoryLabels = map[domain.Category]string{
	domain.CategoryBar:        "Bar",
	domain.CategoryCafe:       "Cafe",
	domain.CategoryRestaurant: "Restaurant",
	domain.CategoryPub:        "Pub",
	domain.CategoryPizzeria:   "Pizzeria",
	domain.CategoryHookah:     "Hookah lounge",
	domain.CategoryCoffeeShop: "Coffee shop",
}

func vibeLabel(v domain.Vibe) string {
	if l, ok := vibeLabels[v]; ok {
		return l
	}
	return string(v)
}

func categoryLabel(c domain.Category) string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

func menuButtons() [][]domain.Button {
	return [][]domain.Button{
		{{Label: "📋 Places nearby", Token: tokenListPlaces}},
		{{Label: "➕ Add a place", Token: tokenAddPlace}},
		{{Label: "✏️ Edit a place", Token: tokenEditPlace}},
	}
}

func menuReply(text string) domain.Reply {
	return domain.Reply{Text: text, Buttons: menuButtons()}
}

func vibeKeyboard() [][]domain.Button {
	return chunkButtons(vibeButtons(), 4)
}

func categoryKeyboard() [][]domain.Button {
	return chunkButtons(categoryButtons(), 4)
}

func vibeButtons() []domain.Button {
	btns := make([]domain.Button, 0, len(domain.Vibes))
	for _, v := range domain.Vibes {
		btns = append(btns, domain.Button{Label: vibeLabel(v), Token: vibeTokenPrefix + string(v)})
	}
	return btns
}

func categoryButtons() []domain.Button {
	btns := make([]domain.Button, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		btns = append(btns, domain.Button{Label: categoryLabel(c), Token: typeTokenPrefix + string(c)})
	}
	return btns
}

func chunkButtons(btns []domain.Button, perRow int) [][]domain.Button {
	var rows [][]domain.Button
	for len(btns) > 0 {
		n := perRow
		if n > len(btns) {
			n = len(btns)
		}
		rows = append(rows, btns[:n])
		btns = btns[n:]
	}
	return rows
}

func skipRow() []domain.Button {
	return []domain.Button{{Label: "Skip", Token: tokenSkip}}
}

func withSkipRow(rows [][]domain.Button) [][]domain.Button {
	return append(rows, skipRow())
}

func confirmKeyboard() [][]domain.Button {
	return [][]domain.Button{{
		{Label: "Edit", Token: tokenEditConfirm},
		{Label: "Never mind", Token: tokenEditDecline},
	}}
}

// promptFor renders the prompt a state emits on entry and on re-prompt.
func promptFor(state State) domain.Reply {
	switch state {
	case StateAwaitName:
		return domain.TextReply(msgAskName)
	case StateAwaitVibe:
		return domain.Reply{Text: msgAskVibe, Buttons: vibeKeyboard()}
	case StateAwaitType:
		return domain.Reply{Text: msgAskType, Buttons: categoryKeyboard()}
	case StateAwaitLocation:
		return domain.Reply{Text: msgAskLocation, RequestLocation: true}
	case StateAwaitPhoto:
		return domain.TextReply(msgAskPhoto)
	case StateAwaitReview:
		return domain.TextReply(msgAskReview)
	case StateAwaitTargetID:
		return domain.TextReply(msgAskTargetID)
	case StateAwaitEditConfirm:
		return domain.Reply{Text: msgMenu, Buttons: confirmKeyboard()}
	case StateAwaitEditName:
		return domain.Reply{Text: msgEditAskName, Buttons: [][]domain.Button{skipRow()}}
	case StateAwaitEditVibe:
		return domain.Reply{Text: msgEditAskVibe, Buttons: withSkipRow(vibeKeyboard())}
	case StateAwaitEditType:
		return domain.Reply{Text: msgEditAskType, Buttons: withSkipRow(categoryKeyboard())}
	case StateAwaitEditLocation:
		return domain.Reply{Text: msgEditAskLocation, Buttons: [][]domain.Button{skipRow()}}
	case StateAwaitEditPhoto:
		return domain.Reply{Text: msgEditAskPhoto, Buttons: [][]domain.Button{skipRow()}}
	case StateAwaitEditReview:
		return domain.Reply{Text: msgEditAskReview, Buttons: [][]domain.Button{skipRow()}}
	}
	return menuReply(msgMenu)
}

func formatPlace(p domain.Place) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📍 %s (%s, %s)\n", p.Name, categoryLabel(p.Category), vibeLabel(p.Vibe))
	fmt.Fprintf(&b, "%s\n", p.Address)
	if p.Review != "" {
		fmt.Fprintf(&b, "“%s”\n", p.Review)
	}
	if p.PhotoURL != "" {
		fmt.Fprintf(&b, "%s\n", p.PhotoURL)
	}
	fmt.Fprintf(&b, "id: %s", p.ID)
	return b.String()
}

func formatRankedPlace(r RankedPlace) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📍 %s (%s) — %s\n", r.Place.Name, categoryLabel(r.Place.Category), FormatDistance(r.Distance))
	fmt.Fprintf(&b, "%s\n", r.Place.Address)
	if r.Place.Review != "" {
		fmt.Fprintf(&b, "“%s”\n", r.Place.Review)
	}
	fmt.Fprintf(&b, "id: %s", r.Place.ID)
	return b.String()
}
