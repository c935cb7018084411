package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mozillazg/go-unidecode"

	"places-bot/internal/domain"
)

// PlaceStore is the datastore boundary. ListLegacyPlaces serves the
// old table whose rows carry WKT geometry text.
type PlaceStore interface {
	ListPlaces(ctx context.Context) ([]domain.Place, error)
	ListLegacyPlaces(ctx context.Context) ([]domain.Place, error)
	GetPlace(ctx context.Context, id string) (domain.Place, error)
	InsertPlace(ctx context.Context, p domain.Place) (string, error)
	UpdatePlace(ctx context.Context, id string, upd domain.PlaceUpdate) error
}

// AddressResolver turns coordinates into a display address. It falls
// back to the coordinate literal internally and never fails.
type AddressResolver interface {
	ResolveAddress(ctx context.Context, lat, lon float64) string
}

// PhotoFetcher downloads the bytes of one transport photo variant.
type PhotoFetcher interface {
	FetchPhoto(ctx context.Context, fileID string) (data []byte, contentType string, err error)
}

// ObjectStore is the photo upload boundary.
type ObjectStore interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) error
	PublicURL(name string) string
}

// Service dispatches inbound chat events to per-user conversation
// state machines and the stateless menu/list commands.
type Service struct {
	places     PlaceStore
	geocoder   AddressResolver
	photos     PhotoFetcher
	objects    ObjectStore
	authorized map[int64]struct{}
	sessions   *sessionStore
	log        *slog.Logger

	now func() time.Time
}

// NewService validates the collaborators and builds a Service.
func NewService(places PlaceStore, geocoder AddressResolver, photos PhotoFetcher, objects ObjectStore, authorizedIDs []int64, log *slog.Logger) (*Service, error) {
	if places == nil {
		return nil, errors.New("usecase: place store must not be nil")
	}
	if geocoder == nil {
		return nil, errors.New("usecase: address resolver must not be nil")
	}
	if photos == nil {
		return nil, errors.New("usecase: photo fetcher must not be nil")
	}
	if objects == nil {
		return nil, errors.New("usecase: object store must not be nil")
	}
	if len(authorizedIDs) == 0 {
		return nil, errors.New("usecase: at least one authorized user is required")
	}
	if log == nil {
		log = slog.Default()
	}
	authorized := make(map[int64]struct{}, len(authorizedIDs))
	for _, id := range authorizedIDs {
		authorized[id] = struct{}{}
	}
	return &Service{
		places:     places,
		geocoder:   geocoder,
		photos:     photos,
		objects:    objects,
		authorized: authorized,
		sessions:   newSessionStore(),
		log:        log,
		now:        time.Now,
	}, nil
}

// HandleEvent processes one inbound event and returns the replies to
// send. Unauthorized identities get the denial message and no session.
// Processing for one user+chat is serialized; failures surface as
// replies, never as partially-applied session mutations.
func (s *Service) HandleEvent(ctx context.Context, ev domain.Event) []domain.Reply {
	if _, ok := s.authorized[ev.UserID]; !ok {
		return []domain.Reply{domain.TextReply(msgDenied)}
	}

	var replies []domain.Reply
	s.sessions.withSession(sessionKey{userID: ev.UserID, chatID: ev.ChatID}, func(sess *Session) {
		replies = s.dispatch(ctx, sess, ev)
	})
	return replies
}

func (s *Service) dispatch(ctx context.Context, sess *Session, ev domain.Event) []domain.Reply {
	if ev.Kind == domain.EventCommand {
		return s.handleCommand(sess, ev)
	}
	if ev.Kind == domain.EventButton {
		in, _ := routeToken(ev.Button)
		if in == intentCancel {
			return s.cancel(sess)
		}
		if sess.State == StateIdle {
			switch in {
			case intentAddPlace:
				return s.startCreate(sess)
			case intentListPlaces:
				return s.startBrowse(ctx, sess, ev.UserID)
			case intentEditPlace:
				return s.startEdit(sess)
			case intentMore:
				return s.browseMore(ctx, sess, ev.UserID)
			case intentStop:
				sess.Page = 0
				return []domain.Reply{menuReply(msgMenu)}
			}
			return []domain.Reply{menuReply(msgMenuHint)}
		}
	}
	if sess.State == StateIdle {
		return s.handleIdle(ctx, sess, ev)
	}
	return s.step(ctx, sess, ev)
}

func (s *Service) handleCommand(sess *Session, ev domain.Event) []domain.Reply {
	switch ev.Command {
	case "start":
		sess.reset()
		return []domain.Reply{menuReply(msgWelcome)}
	case "cancel":
		return s.cancel(sess)
	}
	return []domain.Reply{menuReply(msgMenuHint)}
}

// cancel unconditionally clears the draft and pagination cursor.
func (s *Service) cancel(sess *Session) []domain.Reply {
	if sess.State == StateIdle && sess.Page == 0 {
		return []domain.Reply{menuReply(msgNothingToCancel)}
	}
	sess.reset()
	return []domain.Reply{menuReply(msgCancelled)}
}

// handleIdle covers events outside any flow. A bare location refreshes
// the user's last-known location and answers with the nearest places.
func (s *Service) handleIdle(ctx context.Context, sess *Session, ev domain.Event) []domain.Reply {
	if ev.Kind == domain.EventLocation {
		pt := domain.GeoPoint{Lat: ev.Location.Latitude, Lon: ev.Location.Longitude}
		s.sessions.setLocation(ev.UserID, pt)
		sess.Page = 0
		return s.renderPage(ctx, sess, pt, 0)
	}
	return []domain.Reply{menuReply(msgMenuHint)}
}

func (s *Service) startCreate(sess *Session) []domain.Reply {
	sess.reset()
	sess.State = StateAwaitName
	return []domain.Reply{promptFor(StateAwaitName)}
}

func (s *Service) startEdit(sess *Session) []domain.Reply {
	sess.reset()
	sess.State = StateAwaitTargetID
	return []domain.Reply{promptFor(StateAwaitTargetID)}
}

func (s *Service) startBrowse(ctx context.Context, sess *Session, userID int64) []domain.Reply {
	pt, ok := s.sessions.location(userID)
	if !ok {
		return []domain.Reply{{Text: msgShareLocation, RequestLocation: true}}
	}
	sess.Page = 0
	return s.renderPage(ctx, sess, pt, 0)
}

func (s *Service) browseMore(ctx context.Context, sess *Session, userID int64) []domain.Reply {
	pt, ok := s.sessions.location(userID)
	if !ok {
		return []domain.Reply{{Text: msgShareLocation, RequestLocation: true}}
	}
	return s.renderPage(ctx, sess, pt, sess.Page+1)
}

// renderPage ranks both tables against ref and renders one page. The
// stored cursor moves only when the requested page is non-empty.
func (s *Service) renderPage(ctx context.Context, sess *Session, ref domain.GeoPoint, page int) []domain.Reply {
	places, err := s.loadPlaces(ctx)
	if err != nil {
		s.log.Error("list places", "err", err)
		return []domain.Reply{menuReply(msgListFailed)}
	}
	ranked := RankByDistance(ref, places)
	items, hasMore := PageOf(ranked, page)
	if len(items) == 0 {
		if len(ranked) == 0 {
			return []domain.Reply{menuReply(msgNoPlaces)}
		}
		return []domain.Reply{domain.TextReply(msgNoMoreResults)}
	}
	sess.Page = page

	var b strings.Builder
	fmt.Fprintf(&b, "Places near you — page %d:\n", page+1)
	for _, r := range items {
		b.WriteString("\n")
		b.WriteString(formatRankedPlace(r))
		b.WriteString("\n")
	}
	var rows [][]domain.Button
	if hasMore {
		rows = append(rows, []domain.Button{{Label: "More", Token: tokenMore}})
	}
	rows = append(rows, []domain.Button{{Label: "Stop", Token: tokenStop}})
	return []domain.Reply{{Text: b.String(), Buttons: rows}}
}

func (s *Service) loadPlaces(ctx context.Context) ([]domain.Place, error) {
	current, err := s.places.ListPlaces(ctx)
	if err != nil {
		return nil, err
	}
	legacy, err := s.places.ListLegacyPlaces(ctx)
	if err != nil {
		return nil, err
	}
	return append(current, legacy...), nil
}

// stateRule is one row of the transition table: the event kind a state
// accepts and the handler applied on a match. Anything else re-prompts
// without touching the session.
type stateRule struct {
	accept    domain.EventKind
	allowSkip bool
	handle    func(*Service, context.Context, *Session, domain.Event) []domain.Reply
}

var transitions = map[State]stateRule{
	StateAwaitName:     {accept: domain.EventText, handle: (*Service).awaitName},
	StateAwaitVibe:     {accept: domain.EventButton, handle: (*Service).awaitVibe},
	StateAwaitType:     {accept: domain.EventButton, handle: (*Service).awaitType},
	StateAwaitLocation: {accept: domain.EventLocation, handle: (*Service).awaitLocation},
	StateAwaitPhoto:    {accept: domain.EventPhoto, handle: (*Service).awaitPhoto},
	StateAwaitReview:   {accept: domain.EventText, handle: (*Service).awaitReview},

	StateAwaitTargetID:     {accept: domain.EventText, handle: (*Service).awaitTargetID},
	StateAwaitEditConfirm:  {accept: domain.EventButton, handle: (*Service).awaitEditConfirm},
	StateAwaitEditName:     {accept: domain.EventText, allowSkip: true, handle: (*Service).awaitEditName},
	StateAwaitEditVibe:     {accept: domain.EventButton, allowSkip: true, handle: (*Service).awaitEditVibe},
	StateAwaitEditType:     {accept: domain.EventButton, allowSkip: true, handle: (*Service).awaitEditType},
	StateAwaitEditLocation: {accept: domain.EventLocation, allowSkip: true, handle: (*Service).awaitEditLocation},
	StateAwaitEditPhoto:    {accept: domain.EventPhoto, allowSkip: true, handle: (*Service).awaitEditPhoto},
	StateAwaitEditReview:   {accept: domain.EventText, allowSkip: true, handle: (*Service).awaitEditReview},
}

func (s *Service) step(ctx context.Context, sess *Session, ev domain.Event) []domain.Reply {
	rule, ok := transitions[sess.State]
	if !ok {
		s.log.Error("session in unknown state", "state", sess.State.String())
		sess.reset()
		return []domain.Reply{menuReply(msgInternal)}
	}
	if ev.Kind == domain.EventButton {
		if in, _ := routeToken(ev.Button); in == intentSkip {
			if rule.allowSkip {
				return s.advanceEdit(ctx, sess)
			}
			return s.mismatch(sess)
		}
	}
	if ev.Kind != rule.accept {
		return s.mismatch(sess)
	}
	return rule.handle(s, ctx, sess, ev)
}

// mismatch re-prompts for the current state without a transition.
func (s *Service) mismatch(sess *Session) []domain.Reply {
	return []domain.Reply{domain.TextReply(msgWrongInput), promptFor(sess.State)}
}

// ---------------------------------------------------------------------------
// Create flow
// ---------------------------------------------------------------------------

func (s *Service) awaitName(_ context.Context, sess *Session, ev domain.Event) []domain.Reply {
	name := strings.TrimSpace(ev.Text)
	if name == "" {
		return s.mismatch(sess)
	}
	sess.Draft.Name = &name
	sess.State = StateAwaitVibe
	return []domain.Reply{promptFor(StateAwaitVibe)}
}

func (s *Service) awaitVibe(_ context.Context, sess *Session, ev domain.Event) []domain.Reply {
	v, ok := s.vibeChoice(ev)
	if !ok {
		return s.mismatch(sess)
	}
	sess.Draft.Vibe = &v
	sess.State = StateAwaitType
	return []domain.Reply{promptFor(StateAwaitType)}
}

func (s *Service) awaitType(_ context.Context, sess *Session, ev domain.Event) []domain.Reply {
	c, ok := s.categoryChoice(ev)
	if !ok {
		return s.mismatch(sess)
	}
	sess.Draft.Category = &c
	sess.State = StateAwaitLocation
	return []domain.Reply{promptFor(StateAwaitLocation)}
}

func (s *Service) awaitLocation(ctx context.Context, sess *Session, ev domain.Event) []domain.Reply {
	s.applyLocation(ctx, sess, ev.Location)
	sess.State = StateAwaitPhoto
	return []domain.Reply{promptFor(StateAwaitPhoto)}
}

func (s *Service) awaitPhoto(ctx context.Context, sess *Session, ev domain.Event) []domain.Reply {
	url, err := s.storePhoto(ctx, &sess.Draft, ev.Photo)
	if err != nil {
		s.log.Error("photo ingestion failed", "err", err)
		return []domain.Reply{domain.TextReply(msgPhotoFailed)}
	}
	sess.Draft.PhotoURL = &url
	sess.State = StateAwaitReview
	return []domain.Reply{promptFor(StateAwaitReview)}
}

func (s *Service) awaitReview(ctx context.Context, sess *Session, ev domain.Event) []domain.Reply {
	review := strings.TrimSpace(ev.Text)
	sess.Draft.Review = &review

	p, err := sess.Draft.BuildPlace()
	if err != nil {
		// Incomplete draft: report and hold at the review step.
		s.log.Warn("create persist rejected", "err", err)
		return []domain.Reply{domain.TextReply(err.Error())}
	}
	id, err := s.places.InsertPlace(ctx, p)
	if err != nil {
		s.log.Error("insert place", "err", err)
		return []domain.Reply{domain.TextReply(msgSaveFailed)}
	}
	sess.reset()
	return []domain.Reply{menuReply(fmt.Sprintf("Saved! The new place got id %s.", id))}
}

// ---------------------------------------------------------------------------
// Edit flow
// ---------------------------------------------------------------------------

func (s *Service) awaitTargetID(ctx context.Context, sess *Session, ev domain.Event) []domain.Reply {
	n, err := strconv.Atoi(strings.TrimSpace(ev.Text))
	if err != nil {
		return []domain.Reply{domain.TextReply(msgTargetNotNumeric)}
	}
	p, err := s.places.GetPlace(ctx, strconv.Itoa(n))
	if errors.Is(err, domain.ErrPlaceNotFound) {
		return []domain.Reply{domain.TextReply(msgTargetNotFound)}
	}
	if err != nil {
		s.log.Error("get place", "id", n, "err", err)
		return []domain.Reply{domain.TextReply(msgLookupFailed)}
	}
	sess.Draft.TargetID = p.ID
	sess.Draft.Original = &p
	sess.State = StateAwaitEditConfirm
	return []domain.Reply{{Text: "Edit this place?\n\n" + formatPlace(p), Buttons: confirmKeyboard()}}
}

func (s *Service) awaitEditConfirm(_ context.Context, sess *Session, ev domain.Event) []domain.Reply {
	switch in, _ := routeToken(ev.Button); in {
	case intentEditConfirm:
		sess.State = StateAwaitEditName
		sess.EditStep = EditStepName
		return []domain.Reply{promptFor(StateAwaitEditName)}
	case intentEditDecline:
		sess.reset()
		return []domain.Reply{menuReply(msgMenu)}
	}
	return s.mismatch(sess)
}

func (s *Service) awaitEditName(ctx context.Context, sess *Session, ev domain.Event) []domain.Reply {
	name := strings.TrimSpace(ev.Text)
	if name == "" {
		return s.mismatch(sess)
	}
	sess.Draft.Name = &name
	return s.advanceEdit(ctx, sess)
}

func (s *Service) awaitEditVibe(ctx context.Context, sess *Session, ev domain.Event) []domain.Reply {
	v, ok := s.vibeChoice(ev)
	if !ok {
		return s.mismatch(sess)
	}
	sess.Draft.Vibe = &v
	return s.advanceEdit(ctx, sess)
}

func (s *Service) awaitEditType(ctx context.Context, sess *Session, ev domain.Event) []domain.Reply {
	c, ok := s.categoryChoice(ev)
	if !ok {
		return s.mismatch(sess)
	}
	sess.Draft.Category = &c
	return s.advanceEdit(ctx, sess)
}

func (s *Service) awaitEditLocation(ctx context.Context, sess *Session, ev domain.Event) []domain.Reply {
	s.applyLocation(ctx, sess, ev.Location)
	return s.advanceEdit(ctx, sess)
}

func (s *Service) awaitEditPhoto(ctx context.Context, sess *Session, ev domain.Event) []domain.Reply {
	url, err := s.storePhoto(ctx, &sess.Draft, ev.Photo)
	if err != nil {
		s.log.Error("photo ingestion failed", "err", err)
		return []domain.Reply{domain.TextReply(msgPhotoFailed)}
	}
	sess.Draft.PhotoURL = &url
	return s.advanceEdit(ctx, sess)
}

func (s *Service) awaitEditReview(ctx context.Context, sess *Session, ev domain.Event) []domain.Reply {
	review := strings.TrimSpace(ev.Text)
	sess.Draft.Review = &review
	return s.advanceEdit(ctx, sess)
}

// advanceEdit moves to the field after the current edit step, or
// persists once the review step is done. Skip lands here directly, so
// the step marker alone decides where the conversation goes next.
func (s *Service) advanceEdit(ctx context.Context, sess *Session) []domain.Reply {
	switch sess.EditStep {
	case EditStepName:
		sess.State, sess.EditStep = StateAwaitEditVibe, EditStepVibe
	case EditStepVibe:
		sess.State, sess.EditStep = StateAwaitEditType, EditStepType
	case EditStepType:
		sess.State, sess.EditStep = StateAwaitEditLocation, EditStepLocation
	case EditStepLocation:
		sess.State, sess.EditStep = StateAwaitEditPhoto, EditStepPhoto
	case EditStepPhoto:
		sess.State, sess.EditStep = StateAwaitEditReview, EditStepReview
	case EditStepReview:
		return s.persistEdit(ctx, sess)
	default:
		s.log.Error("edit flow without step marker", "state", sess.State.String())
		sess.reset()
		return []domain.Reply{menuReply(msgInternal)}
	}
	return []domain.Reply{promptFor(sess.State)}
}

func (s *Service) persistEdit(ctx context.Context, sess *Session) []domain.Reply {
	upd, err := sess.Draft.BuildUpdate()
	if err != nil {
		s.log.Error("edit persist without target", "err", err)
		sess.reset()
		return []domain.Reply{menuReply(msgEditNoTarget)}
	}
	id := sess.Draft.TargetID
	if err := s.places.UpdatePlace(ctx, id, upd); err != nil {
		s.log.Error("update place", "id", id, "err", err)
		sess.State = StateAwaitEditReview
		sess.EditStep = EditStepReview
		return []domain.Reply{domain.TextReply(msgUpdateFailed)}
	}
	merged := sess.Draft.Merged()
	sess.reset()
	return []domain.Reply{menuReply(fmt.Sprintf("Updated place %s.\n\n%s", id, formatPlace(merged)))}
}

// ---------------------------------------------------------------------------
// Shared field helpers
// ---------------------------------------------------------------------------

func (s *Service) vibeChoice(ev domain.Event) (domain.Vibe, bool) {
	in, arg := routeToken(ev.Button)
	if in != intentChooseVibe {
		return "", false
	}
	return domain.ParseVibe(arg)
}

func (s *Service) categoryChoice(ev domain.Event) (domain.Category, bool) {
	in, arg := routeToken(ev.Button)
	if in != intentChooseType {
		return "", false
	}
	return domain.ParseCategory(arg)
}

// applyLocation captures coordinates into the draft and resolves the
// address: the transport's own address when present, otherwise reverse
// geocoding with its built-in coordinate-literal fallback.
func (s *Service) applyLocation(ctx context.Context, sess *Session, loc *domain.Location) {
	sess.Draft.SetLocation(loc.Latitude, loc.Longitude)
	addr := strings.TrimSpace(loc.Address)
	if addr == "" {
		addr = s.geocoder.ResolveAddress(ctx, loc.Latitude, loc.Longitude)
	}
	sess.Draft.Address = &addr
}

// storePhoto picks the largest variant, downloads it and uploads it to
// the object store. The draft is only mutated by the caller on success.
func (s *Service) storePhoto(ctx context.Context, d *Draft, variants []domain.PhotoVariant) (string, error) {
	if len(variants) == 0 {
		return "", newError(ErrorInvalidInput, "no_photo_variants", nil)
	}
	v := largestVariant(variants)
	data, contentType, err := s.photos.FetchPhoto(ctx, v.FileID)
	if err != nil {
		return "", newError(ErrorCollaborator, "photo_fetch_error", err)
	}
	name := s.objectName(d)
	if err := s.objects.Upload(ctx, name, data, contentType); err != nil {
		return "", newError(ErrorCollaborator, "photo_upload_error", err)
	}
	return s.objects.PublicURL(name), nil
}

func largestVariant(variants []domain.PhotoVariant) domain.PhotoVariant {
	best := variants[0]
	for _, v := range variants[1:] {
		if v.Width*v.Height > best.Width*best.Height {
			best = v
		}
	}
	return best
}

// objectName derives a filesystem-safe object name from the place name:
// transliterated to ASCII, whitespace collapsed to underscores, with a
// timestamp suffix for uniqueness.
func (s *Service) objectName(d *Draft) string {
	base := ""
	switch {
	case d.Name != nil:
		base = *d.Name
	case d.Original != nil:
		base = d.Original.Name
	}
	base = sanitizeObjectName(unidecode.Unidecode(base))
	if base == "" {
		base = uuid.NewString()
	}
	return base + "_" + strconv.FormatInt(s.now().Unix(), 10) + ".jpg"
}

func sanitizeObjectName(name string) string {
	name = strings.Join(strings.Fields(name), "_")
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
