package stage

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/PollyDrive/estate-sub000/internal/config"
	"github.com/PollyDrive/estate-sub000/internal/criteria"
	"github.com/PollyDrive/estate-sub000/internal/source"
	"github.com/PollyDrive/estate-sub000/internal/store"
)

// gmt8 is delivery-audience local time.
var gmt8 = time.FixedZone("GMT+8", 8*60*60)

// Stage5 delivers one batch to one audience chat: a final guard pass, the
// Telegram sends, and the batch bookkeeping. Quiet hours suppress the
// whole run.
type Stage5 struct {
	db       DB
	sender   MessageSender
	profile  criteria.Profile
	telegram config.TelegramConfig
	guard    *guard

	now   func() time.Time
	sleep func(time.Duration)
}

func NewStage5(db DB, sender MessageSender, profile criteria.Profile, tcfg config.TelegramConfig, gcfg config.GuardConfig) (*Stage5, error) {
	g, err := newGuard(gcfg)
	if err != nil {
		return nil, fmt.Errorf("stage5 %s: %w", profile.Name, err)
	}
	return &Stage5{
		db:       db,
		sender:   sender,
		profile:  profile,
		telegram: tcfg,
		guard:    g,
		now:      time.Now,
		sleep:    time.Sleep,
	}, nil
}

type Stage5Result struct {
	Quiet      bool
	Sent       int
	NoDescSent int
	Blocked    int
	Errors     int
}

func (s *Stage5) Run(ctx context.Context) (Stage5Result, error) {
	hour := s.now().In(gmt8).Hour()
	if hour >= s.telegram.QuietStart && hour < s.telegram.QuietEnd {
		log.Info().Int("hour", hour).Msg("quiet hours, skipping delivery")
		return Stage5Result{Quiet: true}, nil
	}

	chatID, err := strconv.ParseInt(s.profile.ChatID, 10, 64)
	if err != nil {
		return Stage5Result{}, fmt.Errorf("stage5 %s: bad chat id %q: %w", s.profile.Name, s.profile.ChatID, err)
	}

	run, err := s.db.StartBatchRun(ctx, uuid.NewString(), s.profile.ChatID)
	if err != nil {
		return Stage5Result{}, fmt.Errorf("stage5 %s: %w", s.profile.Name, err)
	}

	var res Stage5Result
	rows, err := s.db.SelectUnsentPassed(ctx, s.profile.ChatID, s.telegram.BatchSize)
	if err != nil {
		return res, fmt.Errorf("stage5 %s: select: %w", s.profile.Name, err)
	}

	for i, l := range rows {
		if reason := s.guardReason(ctx, l); reason != "" {
			if err := s.db.MarkProfileRejected(ctx, l.FBID, s.profile.ChatID, reason); err != nil {
				return res, fmt.Errorf("stage5 %s: %w", s.profile.Name, err)
			}
			res.Blocked++
			continue
		}

		msgID, err := s.sender.SendMessage(ctx, chatID, formatListingMessage(l))
		if err != nil {
			log.Error().Err(err).Str("fb_id", l.FBID).Msg("send failed")
			res.Errors++
			continue
		}
		if err := s.db.MarkProfileSent(ctx, l.FBID, s.profile.ChatID, msgID); err != nil {
			return res, fmt.Errorf("stage5 %s: %w", s.profile.Name, err)
		}
		if err := s.db.MarkSent(ctx, l.FBID, msgID); err != nil {
			return res, fmt.Errorf("stage5 %s: %w", s.profile.Name, err)
		}
		res.Sent++
		if i < len(rows)-1 && s.telegram.MessageDelay > 0 {
			s.sleep(time.Duration(s.telegram.MessageDelay) * time.Second)
		}
	}

	noDesc, err := s.sendNoDescriptionDigest(ctx, chatID)
	if err != nil {
		log.Error().Err(err).Msg("no-description digest failed")
		res.Errors++
	}
	res.NoDescSent = noDesc

	if err := s.db.FinishBatchRun(ctx, run.ID, res.Sent, res.NoDescSent, res.Blocked, res.Errors); err != nil {
		return res, fmt.Errorf("stage5 %s: %w", s.profile.Name, err)
	}

	log.Info().Str("profile", s.profile.Name).Int("batch", run.BatchNumber).
		Int("sent", res.Sent).Int("no_desc_sent", res.NoDescSent).
		Int("blocked", res.Blocked).Int("errors", res.Errors).Msg("stage 5 done")
	return res, nil
}

// guardReason runs the last-line policy checks. A non-empty return blocks
// the send and is recorded as the rejection reason.
func (s *Stage5) guardReason(ctx context.Context, l store.Listing) string {
	if s.guard == nil || !s.guard.enabled {
		return ""
	}
	if reason := s.guard.check(l); reason != "" {
		return reason
	}
	if l.PriceIDR != nil && *l.PriceIDR > s.profile.PriceMax {
		return fmt.Sprintf("REJECT_STAGE5: price %.0f over profile max %.0f", *l.PriceIDR, s.profile.PriceMax)
	}
	if s.guard.duplicateCheck {
		dup, err := s.db.DuplicateSentExists(ctx, s.profile.ChatID, l.FBID,
			deref(l.PhoneNumber), deref(l.Location), l.Bedrooms)
		if err != nil {
			log.Warn().Err(err).Str("fb_id", l.FBID).Msg("duplicate check failed")
		} else if dup {
			if _, err := s.db.Transition(ctx, l.FBID, store.StatusStage4, store.StatusStage4Duplicate); err != nil {
				log.Warn().Err(err).Str("fb_id", l.FBID).Msg("duplicate demotion failed")
			}
			return s.guard.duplicateReason
		}
	}
	return ""
}

// sendNoDescriptionDigest delivers up to five unsent marketplace rows that
// never got a description, as a single link list so subscribers can check
// them manually.
func (s *Stage5) sendNoDescriptionDigest(ctx context.Context, chatID int64) (int, error) {
	rows, err := s.db.SelectByDisposition(ctx, store.DispositionNoDescription)
	if err != nil {
		return 0, err
	}
	var picked []store.Listing
	for _, l := range rows {
		if l.Source != source.SourceMarketplace || l.TelegramSent {
			continue
		}
		picked = append(picked, l)
		if len(picked) == 5 {
			break
		}
	}
	if len(picked) == 0 {
		return 0, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 *Объявления без описания* (%d)\n", len(picked))
	for i, l := range picked {
		title := deref(l.Title)
		if title == "" {
			title = l.FBID
		}
		fmt.Fprintf(&b, "\n%d. [%s](%s)", i+1, title, deref(l.ListingURL))
	}

	msgID, err := s.sender.SendMessage(ctx, chatID, b.String())
	if err != nil {
		return 0, err
	}
	for _, l := range picked {
		if err := s.db.MarkSent(ctx, l.FBID, msgID); err != nil {
			return 0, err
		}
	}
	return len(picked), nil
}

// formatListingMessage renders the delivery card.
func formatListingMessage(l store.Listing) string {
	price := deref(l.PriceRaw)
	if price == "" && l.PriceIDR != nil {
		price = fmt.Sprintf("%.0f IDR", *l.PriceIDR)
	}
	if price == "" {
		price = "не указана"
	}
	phone := deref(l.PhoneNumber)
	if phone == "" {
		phone = "не указан"
	}

	body := deref(l.SummaryRU)
	if body == "" {
		body = truncate(deref(l.Description), 800)
	}

	var b strings.Builder
	b.WriteString("🏡 *Новый вариант!*\n")
	if t := deref(l.Title); t != "" {
		fmt.Fprintf(&b, "\n*%s*\n", t)
	}
	if body != "" {
		fmt.Fprintf(&b, "\n%s\n", body)
	}
	fmt.Fprintf(&b, "\n💰 Цена: %s", price)
	fmt.Fprintf(&b, "\n📞 Телефон: %s", phone)
	if u := deref(l.ListingURL); u != "" {
		fmt.Fprintf(&b, "\n🔗 [Ссылка](%s)", u)
	}
	return b.String()
}

// guard holds the compiled delivery-time policy rules.
type guard struct {
	enabled          bool
	rules            []compiledGuardRule
	blockedLocations []string
	duplicateCheck   bool
	duplicateReason  string
}

type compiledGuardRule struct {
	re     *regexp.Regexp
	reason string
	fields []string
}

func newGuard(cfg config.GuardConfig) (*guard, error) {
	g := &guard{
		enabled:          cfg.Enabled,
		blockedLocations: cfg.BlockedLocations,
		duplicateCheck:   cfg.DuplicateCheck,
		duplicateReason:  cfg.DuplicateReason,
	}
	if g.duplicateReason == "" {
		g.duplicateReason = "REJECT_STAGE5: duplicate phone/location/bedrooms"
	}
	for _, r := range cfg.RegexRules {
		re, err := regexp.Compile("(?i)" + r.Regex)
		if err != nil {
			return nil, fmt.Errorf("guard rule %q: %w", r.Regex, err)
		}
		fields := r.Fields
		if len(fields) == 0 {
			fields = []string{"title", "description"}
		}
		g.rules = append(g.rules, compiledGuardRule{re: re, reason: r.Reason, fields: fields})
	}
	return g, nil
}

func (g *guard) check(l store.Listing) string {
	for _, rule := range g.rules {
		for _, f := range rule.fields {
			if rule.re.MatchString(guardField(l, f)) {
				reason := rule.reason
				if reason == "" {
					reason = fmt.Sprintf("REJECT_STAGE5: matched %s", rule.re.String())
				}
				return reason
			}
		}
	}
	blob := strings.ToLower(deref(l.Title) + " " + deref(l.Description) + " " + deref(l.Location))
	for _, loc := range g.blockedLocations {
		if loc != "" && strings.Contains(blob, strings.ToLower(loc)) {
			return fmt.Sprintf("REJECT_STAGE5: blocked location %s", loc)
		}
	}
	return ""
}

func guardField(l store.Listing, name string) string {
	switch name {
	case "title":
		return deref(l.Title)
	case "description":
		return deref(l.Description)
	case "location":
		return deref(l.Location)
	case "price":
		return deref(l.PriceRaw)
	case "phone":
		return deref(l.PhoneNumber)
	default:
		return ""
	}
}
