// Package wpsync copies a legacy WordPress installation into the Legio
// SQLite database. A run reads everything from the source first, refuses
// to touch the target if a full replace would leave it empty, and then
// imports users, news, polls, votes, likes, reports, and points history
// keyed on the source ids so re-runs are idempotent.
package wpsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/legionews/legio/store"
	"github.com/legionews/legio/wpmap"
	"github.com/legionews/legio/wpsource"
)

// ErrEmptySource aborts a full replace when the source returns no users
// and no posts, which almost always means a misconfigured prefix or an
// empty database rather than a genuinely blank site.
var ErrEmptySource = errors.New("wpsync: source returned no users and no posts, full replace aborted")

// Source is what a sync run reads. *wpsource.Reader implements it; tests
// substitute fixtures.
type Source interface {
	PointsSettings(ctx context.Context) (wpmap.PointsSettings, error)
	Users(ctx context.Context) ([]wpsource.UserRow, error)
	Posts(ctx context.Context) ([]wpsource.PostRow, error)
	FeaturedImages(ctx context.Context) (map[int64]string, error)
	Terms(ctx context.Context) ([]wpsource.TermRow, error)
	PollMeta(ctx context.Context) ([]wpmap.MetaRow, error)
	CorrectAnswers(ctx context.Context) (map[int64]int, error)
	Votes(ctx context.Context) ([]wpsource.VoteRow, error)
	Likes(ctx context.Context) ([]wpsource.LikeRow, error)
	Complaints(ctx context.Context) ([]wpsource.ComplaintRow, error)
	PointsHistory(ctx context.Context) ([]wpsource.PointsRow, error)
}

// Stats summarises one completed run.
type Stats struct {
	FullReplace   bool                 `json:"fullReplace"`
	Users         int                  `json:"users"`
	News          int                  `json:"news"`
	Polls         int                  `json:"polls"`
	Votes         int                  `json:"votes"`
	Likes         int                  `json:"likes"`
	Reports       int                  `json:"reports"`
	PointsHistory int                  `json:"pointsHistory"`
	Settings      wpmap.PointsSettings `json:"settings"`
}

// Run connects to the configured WordPress database, performs one sync
// into st, and closes the connection.
func Run(ctx context.Context, logger *slog.Logger, st *store.Store, cfg Config) (Stats, error) {
	reader, err := wpsource.Connect(ctx, cfg.Source)
	if err != nil {
		return Stats{FullReplace: cfg.FullReplace, Settings: wpmap.DefaultPointsSettings}, err
	}
	defer reader.Close()

	return Sync(ctx, logger, st, reader, cfg.FullReplace)
}

// Sync performs one run from an already-open source.
func Sync(ctx context.Context, logger *slog.Logger, st *store.Store, src Source, fullReplace bool) (Stats, error) {
	stats := Stats{FullReplace: fullReplace, Settings: wpmap.DefaultPointsSettings}
	started := time.Now()

	settings, err := src.PointsSettings(ctx)
	if err != nil {
		return stats, err
	}
	stats.Settings = settings

	users, err := src.Users(ctx)
	if err != nil {
		return stats, err
	}
	posts, err := src.Posts(ctx)
	if err != nil {
		return stats, err
	}

	// The four post-scoped reads are independent of each other.
	var (
		images         map[int64]string
		terms          []wpsource.TermRow
		pollMeta       []wpmap.MetaRow
		correctAnswers map[int64]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { images, err = src.FeaturedImages(gctx); return })
	g.Go(func() (err error) { terms, err = src.Terms(gctx); return })
	g.Go(func() (err error) { pollMeta, err = src.PollMeta(gctx); return })
	g.Go(func() (err error) { correctAnswers, err = src.CorrectAnswers(gctx); return })
	if err := g.Wait(); err != nil {
		return stats, err
	}

	votes, err := src.Votes(ctx)
	if err != nil {
		return stats, err
	}
	likes, err := src.Likes(ctx)
	if err != nil {
		return stats, err
	}
	complaints, err := src.Complaints(ctx)
	if err != nil {
		return stats, err
	}
	history, err := src.PointsHistory(ctx)
	if err != nil {
		return stats, err
	}

	// Everything is read; nothing has been written yet. The empty-source
	// guard therefore leaves the target byte-for-byte untouched.
	if fullReplace && len(users) == 0 && len(posts) == 0 {
		return stats, ErrEmptySource
	}

	if fullReplace {
		if err := st.ClearSyncedTables(ctx); err != nil {
			return stats, err
		}
	}

	if err := st.UpsertPointsSettings(ctx, settings); err != nil {
		return stats, err
	}

	userIDs, err := importUsers(ctx, st, users, settings)
	if err != nil {
		return stats, err
	}
	stats.Users = len(users)
	stats.News = len(posts)

	taxonomy := buildTaxonomy(terms)
	polls := wpmap.ParsePollMeta(pollMeta)

	optionMap, newsIDs, err := importNewsAndPolls(ctx, st, posts, taxonomy, images, polls, correctAnswers)
	if err != nil {
		return stats, err
	}
	stats.Polls = len(optionMap)

	if stats.Votes, err = importVotes(ctx, st, votes, optionMap, userIDs); err != nil {
		return stats, err
	}
	if stats.Likes, err = importLikes(ctx, st, likes, newsIDs, userIDs); err != nil {
		return stats, err
	}
	if stats.Reports, err = importComplaints(ctx, st, complaints, newsIDs, userIDs); err != nil {
		return stats, err
	}
	if stats.PointsHistory, err = importPointsHistory(ctx, st, history, userIDs); err != nil {
		return stats, err
	}

	logger.Info("wordpress sync completed",
		"fullReplace", fullReplace,
		"users", stats.Users,
		"news", stats.News,
		"polls", stats.Polls,
		"votes", stats.Votes,
		"likes", stats.Likes,
		"reports", stats.Reports,
		"pointsHistory", stats.PointsHistory,
		"elapsed", time.Since(started).Round(time.Millisecond))

	return stats, nil
}

// importUsers writes every source user and returns the set of imported
// ids. When no source user carries the admin role the lowest-id user is
// promoted so the new install always has one.
func importUsers(ctx context.Context, st *store.Store, users []wpsource.UserRow, settings wpmap.PointsSettings) (map[int64]bool, error) {
	existing, err := st.ExistingNames(ctx)
	if err != nil {
		return nil, err
	}
	allocator := wpmap.NewNameAllocator()
	for _, row := range existing {
		allocator.SeedUsername(row.Username, row.ID)
		allocator.SeedDisplayName(row.Name, row.ID)
	}

	userIDs := make(map[int64]bool, len(users))
	admins := 0

	for _, u := range users {
		if u.ID == 0 {
			continue
		}

		base := u.Login
		if base == "" {
			base = u.Email
		}
		username := allocator.Username(base, u.ID)

		displayBase := u.DisplayName
		if wpmap.SanitizeText(displayBase) == "" {
			displayBase = username
		}
		name := allocator.DisplayName(displayBase, u.ID)

		role := wpmap.RoleFromCapabilities(u.Capabilities)
		if role == wpmap.RoleAdmin {
			admins++
		}

		points := settings.StartPoints
		if u.PollPoints.Valid {
			points = int(u.PollPoints.Int64)
		}
		level := wpmap.CalculateLevel(points)
		if u.PollLevel.Valid && u.PollLevel.Int64 > 0 {
			level = int(u.PollLevel.Int64)
		}

		avatar := wpmap.SanitizeText(u.AvatarURL)
		if avatar == "" {
			avatar = wpmap.FallbackAvatar(username)
		}

		err := st.UpsertUser(ctx, store.User{
			ID:        u.ID,
			Username:  username,
			Password:  u.PasswordHash,
			Role:      role,
			Points:    points,
			Level:     level,
			Avatar:    avatar,
			Name:      name,
			CreatedAt: wpmap.CleanDate(u.Registered),
		})
		if err != nil {
			return nil, err
		}
		userIDs[u.ID] = true
	}

	if admins == 0 && len(userIDs) > 0 {
		if err := st.PromoteFirstAdmin(ctx); err != nil {
			return nil, err
		}
	}
	return userIDs, nil
}

type taxEntry struct {
	category string
	tags     []string
}

// buildTaxonomy folds term rows into one category and a tag list per
// post. The first mappable category wins; tags are deduplicated.
func buildTaxonomy(terms []wpsource.TermRow) map[int64]taxEntry {
	byPost := map[int64]taxEntry{}
	for _, term := range terms {
		if term.PostID == 0 {
			continue
		}
		entry, ok := byPost[term.PostID]
		if !ok {
			entry = taxEntry{category: "general"}
		}

		switch term.Taxonomy {
		case "category":
			if entry.category == "general" {
				raw := term.Slug
				if raw == "" {
					raw = term.Name
				}
				entry.category = wpmap.MapCategory(raw)
			}
		case "post_tag":
			tag := wpmap.SanitizeText(term.Name)
			if tag != "" && !slices.Contains(entry.tags, tag) {
				entry.tags = append(entry.tags, tag)
			}
		}
		byPost[term.PostID] = entry
	}
	return byPost
}

// importNewsAndPolls writes one news row per post and, for posts carrying
// poll meta, rebuilds the poll with its options. It returns the per-poll
// counter-to-option-id maps for vote resolution plus the set of news ids.
func importNewsAndPolls(
	ctx context.Context,
	st *store.Store,
	posts []wpsource.PostRow,
	taxonomy map[int64]taxEntry,
	images map[int64]string,
	polls map[int64]wpmap.Poll,
	correctAnswers map[int64]int,
) (map[int64]map[int]int64, map[int64]bool, error) {
	optionMap := map[int64]map[int]int64{}
	newsIDs := make(map[int64]bool, len(posts))

	for _, post := range posts {
		if post.ID == 0 {
			continue
		}

		entry, ok := taxonomy[post.ID]
		if !ok {
			entry = taxEntry{category: "general"}
		}

		title := wpmap.SanitizeText(post.Title)
		if title == "" {
			title = fmt.Sprintf("Новость #%d", post.ID)
		}

		err := st.UpsertNews(ctx, store.News{
			ID:          post.ID,
			Title:       title,
			Description: wpmap.StripHTML(post.Content),
			Image:       wpmap.SanitizeText(images[post.ID]),
			Tags:        entry.tags,
			Category:    entry.category,
			CreatedAt:   wpmap.CleanDate(post.Date),
		})
		if err != nil {
			return nil, nil, err
		}
		newsIDs[post.ID] = true

		poll, ok := polls[post.ID]
		if !ok || poll.Question == "" || len(poll.Options) == 0 {
			// The post is plain news now; drop any poll a previous run
			// may have created for it.
			if err := st.DeletePoll(ctx, post.ID); err != nil {
				return nil, nil, err
			}
			continue
		}

		if err := st.UpsertPoll(ctx, post.ID, poll.Question); err != nil {
			return nil, nil, err
		}
		counterMap, err := st.ReplacePollOptions(ctx, post.ID, poll.Options)
		if err != nil {
			return nil, nil, err
		}
		optionMap[post.ID] = counterMap

		// The plugin stores outcomes as answer counters; map to the fresh
		// option id, or clear the outcome when the counter no longer maps.
		var correctOptionID int64
		if counter, ok := correctAnswers[post.ID]; ok {
			correctOptionID = counterMap[counter]
		}
		if err := st.SetPollOutcome(ctx, post.ID, correctOptionID); err != nil {
			return nil, nil, err
		}
	}

	return optionMap, newsIDs, nil
}

// importVotes resolves each vote's answer counter against the freshly
// inserted options. Votes on unknown polls, options, or users are skipped;
// duplicate votes per (user, poll) are dropped by the store.
func importVotes(ctx context.Context, st *store.Store, votes []wpsource.VoteRow, optionMap map[int64]map[int]int64, userIDs map[int64]bool) (int, error) {
	imported := 0
	for _, vote := range votes {
		if vote.PostID == 0 || vote.UserID == 0 || !userIDs[vote.UserID] {
			continue
		}
		counters, ok := optionMap[vote.PostID]
		if !ok {
			continue
		}
		optionID, ok := counters[vote.Counter]
		if !ok {
			continue
		}

		err := st.InsertVote(ctx, store.Vote{
			ID:        vote.ID,
			UserID:    vote.UserID,
			PollID:    vote.PostID,
			OptionID:  optionID,
			CreatedAt: wpmap.CleanDate(vote.Date),
		})
		if err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

func importLikes(ctx context.Context, st *store.Store, likes []wpsource.LikeRow, newsIDs, userIDs map[int64]bool) (int, error) {
	now := time.Now().UTC().Format("2006-01-02 15:04:05")
	imported := 0
	for _, like := range likes {
		if like.PostID == 0 || like.UserID == 0 || !newsIDs[like.PostID] || !userIDs[like.UserID] {
			continue
		}
		if err := st.InsertLike(ctx, like.UserID, like.PostID, now); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

// importComplaints keeps reports from deleted users by nulling user_id,
// but drops reports about posts that no longer exist.
func importComplaints(ctx context.Context, st *store.Store, complaints []wpsource.ComplaintRow, newsIDs, userIDs map[int64]bool) (int, error) {
	imported := 0
	for _, c := range complaints {
		message := wpmap.SanitizeText(c.Text)
		if c.ID == 0 || c.PostID == 0 || message == "" || !newsIDs[c.PostID] {
			continue
		}

		userID := c.UserID
		if !userID.Valid || !userIDs[userID.Int64] {
			userID.Valid = false
			userID.Int64 = 0
		}

		err := st.UpsertErrorReport(ctx, store.ErrorReport{
			ID:        c.ID,
			NewsID:    c.PostID,
			UserID:    userID,
			Message:   message,
			CreatedAt: wpmap.CleanDate(c.Date),
		})
		if err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

func importPointsHistory(ctx context.Context, st *store.Store, history []wpsource.PointsRow, userIDs map[int64]bool) (int, error) {
	imported := 0
	for _, h := range history {
		comment := wpmap.SanitizeText(h.Comment)
		if h.ID == 0 || h.UserID == 0 || !h.Points.Valid || comment == "" || !userIDs[h.UserID] {
			continue
		}

		err := st.UpsertPointsHistory(ctx, store.PointsEntry{
			ID:      h.ID,
			UserID:  h.UserID,
			Points:  int(h.Points.Int64),
			Date:    wpmap.CleanDate(h.Date),
			Comment: comment,
		})
		if err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
