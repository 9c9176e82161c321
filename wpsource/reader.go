package wpsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/legionews/legio/wpmap"
)

// UserRow is one wp_users row joined with the meta keys the import needs.
// PollPoints and PollLevel come from the poll plugin's poll_points table
// and are absent when the plugin never ran.
type UserRow struct {
	ID           int64
	Login        string
	Email        string
	PasswordHash string
	DisplayName  string
	Registered   string
	Capabilities string
	AvatarURL    string
	PollPoints   sql.NullInt64
	PollLevel    sql.NullInt64
}

// PostRow is one published wp_posts row.
type PostRow struct {
	ID      int64
	Title   string
	Content string
	Date    string
}

// TermRow links a published post to a category or tag term.
type TermRow struct {
	PostID   int64
	Taxonomy string
	Name     string
	Slug     string
}

// VoteRow is one poll_votes row. Counter refers to the plugin's per-poll
// answer counter, not an option id.
type VoteRow struct {
	ID      int64
	PostID  int64
	UserID  int64
	Counter int
	Date    string
}

// LikeRow is one active post_likes row.
type LikeRow struct {
	PostID int64
	UserID int64
}

// ComplaintRow is one complaints row. UserID is null for anonymous reports.
type ComplaintRow struct {
	ID     int64
	PostID int64
	UserID sql.NullInt64
	Text   string
	Date   string
}

// PointsRow is one points_history row.
type PointsRow struct {
	ID      int64
	UserID  int64
	Points  sql.NullInt64
	Date    string
	Comment string
}

// PointsSettings returns the first points_settings row, falling back to
// the defaults per field when the table is missing, empty, or zeroed.
func (r *Reader) PointsSettings(ctx context.Context) (wpmap.PointsSettings, error) {
	settings := wpmap.DefaultPointsSettings

	query := fmt.Sprintf(
		`SELECT start_points, wins_points, level_points FROM %s ORDER BY id ASC LIMIT 1`,
		r.table("points_settings"))
	var start, wins, level sql.NullInt64
	err := r.db.QueryRowContext(ctx, query).Scan(&start, &wins, &level)
	switch {
	case errors.Is(err, sql.ErrNoRows) || missingSchema(err):
		return settings, nil
	case err != nil:
		return settings, fmt.Errorf("wpsource: points settings: %w", err)
	}

	if start.Valid && start.Int64 != 0 {
		settings.StartPoints = int(start.Int64)
	}
	if wins.Valid && wins.Int64 != 0 {
		settings.WinsPoints = int(wins.Int64)
	}
	if level.Valid && level.Int64 != 0 {
		settings.LevelPoints = int(level.Int64)
	}
	return settings, nil
}

// Users returns every wp_users row with its capabilities blob, VK avatar,
// and accumulated poll points merged in.
func (r *Reader) Users(ctx context.Context) ([]UserRow, error) {
	query := fmt.Sprintf(`SELECT
			u.ID,
			u.user_login,
			u.user_email,
			u.user_pass,
			u.display_name,
			u.user_registered,
			MAX(CASE WHEN um.meta_key = ? THEN um.meta_value END) AS capabilities,
			MAX(CASE WHEN um.meta_key = 'vk_avatar_url' THEN um.meta_value END) AS avatar_url
		FROM %s u
		LEFT JOIN %s um ON um.user_id = u.ID
		GROUP BY u.ID, u.user_login, u.user_email, u.user_pass, u.display_name, u.user_registered
		ORDER BY u.ID ASC`,
		r.table("users"), r.table("usermeta"))

	rows, err := r.db.QueryContext(ctx, query, r.prefix+"capabilities")
	if err != nil {
		if missingSchema(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("wpsource: users: %w", err)
	}
	defer rows.Close()

	var users []UserRow
	for rows.Next() {
		var u UserRow
		var login, email, pass, name, registered, caps, avatar sql.NullString
		if err := rows.Scan(&u.ID, &login, &email, &pass, &name, &registered, &caps, &avatar); err != nil {
			return nil, fmt.Errorf("wpsource: users: %w", err)
		}
		u.Login = login.String
		u.Email = email.String
		u.PasswordHash = pass.String
		u.DisplayName = name.String
		u.Registered = registered.String
		u.Capabilities = caps.String
		u.AvatarURL = avatar.String
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("wpsource: users: %w", err)
	}

	if err := r.mergePollPoints(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *Reader) mergePollPoints(ctx context.Context, users []UserRow) error {
	query := fmt.Sprintf(`SELECT user_id, points, level FROM %s`, r.table("poll_points"))
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		if missingSchema(err) {
			return nil
		}
		return fmt.Errorf("wpsource: poll points: %w", err)
	}
	defer rows.Close()

	type pointsRow struct {
		points sql.NullInt64
		level  sql.NullInt64
	}
	byUser := map[int64]pointsRow{}
	for rows.Next() {
		var userID int64
		var p pointsRow
		if err := rows.Scan(&userID, &p.points, &p.level); err != nil {
			return fmt.Errorf("wpsource: poll points: %w", err)
		}
		byUser[userID] = p
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("wpsource: poll points: %w", err)
	}

	for i := range users {
		if p, ok := byUser[users[i].ID]; ok {
			users[i].PollPoints = p.points
			users[i].PollLevel = p.level
		}
	}
	return nil
}

// Posts returns every published post, newest first.
func (r *Reader) Posts(ctx context.Context) ([]PostRow, error) {
	query := fmt.Sprintf(
		`SELECT ID, post_title, post_content, post_date
		 FROM %s
		 WHERE post_type = 'post' AND post_status = 'publish'
		 ORDER BY post_date DESC`,
		r.table("posts"))

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		if missingSchema(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("wpsource: posts: %w", err)
	}
	defer rows.Close()

	var posts []PostRow
	for rows.Next() {
		var p PostRow
		var title, content, date sql.NullString
		if err := rows.Scan(&p.ID, &title, &content, &date); err != nil {
			return nil, fmt.Errorf("wpsource: posts: %w", err)
		}
		p.Title = title.String
		p.Content = content.String
		p.Date = date.String
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("wpsource: posts: %w", err)
	}
	return posts, nil
}

// FeaturedImages maps post id to the attachment URL behind _thumbnail_id.
func (r *Reader) FeaturedImages(ctx context.Context) (map[int64]string, error) {
	query := fmt.Sprintf(
		`SELECT pm.post_id, MAX(att.guid) AS image_url
		 FROM %s pm
		 JOIN %s p ON p.ID = pm.post_id
		 JOIN %s att ON att.ID = CAST(pm.meta_value AS UNSIGNED)
		 WHERE p.post_type = 'post' AND p.post_status = 'publish' AND pm.meta_key = '_thumbnail_id'
		 GROUP BY pm.post_id`,
		r.table("postmeta"), r.table("posts"), r.table("posts"))

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		if missingSchema(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("wpsource: featured images: %w", err)
	}
	defer rows.Close()

	images := map[int64]string{}
	for rows.Next() {
		var postID int64
		var url sql.NullString
		if err := rows.Scan(&postID, &url); err != nil {
			return nil, fmt.Errorf("wpsource: featured images: %w", err)
		}
		if postID != 0 && url.String != "" {
			images[postID] = url.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("wpsource: featured images: %w", err)
	}
	return images, nil
}

// Terms returns the category and tag assignments of published posts.
func (r *Reader) Terms(ctx context.Context) ([]TermRow, error) {
	query := fmt.Sprintf(
		`SELECT tr.object_id AS post_id, tt.taxonomy, t.name, t.slug
		 FROM %s tr
		 JOIN %s tt ON tt.term_taxonomy_id = tr.term_taxonomy_id
		 JOIN %s t ON t.term_id = tt.term_id
		 JOIN %s p ON p.ID = tr.object_id
		 WHERE p.post_type = 'post' AND p.post_status = 'publish' AND tt.taxonomy IN ('category', 'post_tag')`,
		r.table("term_relationships"), r.table("term_taxonomy"), r.table("terms"), r.table("posts"))

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		if missingSchema(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("wpsource: terms: %w", err)
	}
	defer rows.Close()

	var terms []TermRow
	for rows.Next() {
		var term TermRow
		var taxonomy, name, slug sql.NullString
		if err := rows.Scan(&term.PostID, &taxonomy, &name, &slug); err != nil {
			return nil, fmt.Errorf("wpsource: terms: %w", err)
		}
		term.Taxonomy = taxonomy.String
		term.Name = name.String
		term.Slug = slug.String
		terms = append(terms, term)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("wpsource: terms: %w", err)
	}
	return terms, nil
}

// PollMeta returns the raw question/answer meta rows of published posts,
// ready for wpmap.ParsePollMeta.
func (r *Reader) PollMeta(ctx context.Context) ([]wpmap.MetaRow, error) {
	query := fmt.Sprintf(
		`SELECT pm.post_id, pm.meta_key, pm.meta_value
		 FROM %s pm
		 JOIN %s p ON p.ID = pm.post_id
		 WHERE p.post_type = 'post'
		   AND p.post_status = 'publish'
		   AND (
		     pm.meta_key = 'question'
		     OR pm.meta_key LIKE 'answers\_%%\_answer'
		     OR pm.meta_key LIKE 'answers\_%%\_counter'
		   )`,
		r.table("postmeta"), r.table("posts"))

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		if missingSchema(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("wpsource: poll meta: %w", err)
	}
	defer rows.Close()

	var meta []wpmap.MetaRow
	for rows.Next() {
		var m wpmap.MetaRow
		var key, value sql.NullString
		if err := rows.Scan(&m.PostID, &key, &value); err != nil {
			return nil, fmt.Errorf("wpsource: poll meta: %w", err)
		}
		m.Key = key.String
		m.Value = value.String
		meta = append(meta, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("wpsource: poll meta: %w", err)
	}
	return meta, nil
}

// CorrectAnswers maps poll post id to the winning answer counter.
func (r *Reader) CorrectAnswers(ctx context.Context) (map[int64]int, error) {
	query := fmt.Sprintf(
		`SELECT post_id, correct_answer_counter FROM %s`,
		r.table("poll_correct_answers"))

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		if missingSchema(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("wpsource: correct answers: %w", err)
	}
	defer rows.Close()

	answers := map[int64]int{}
	for rows.Next() {
		var postID sql.NullInt64
		var counter sql.NullInt64
		if err := rows.Scan(&postID, &counter); err != nil {
			return nil, fmt.Errorf("wpsource: correct answers: %w", err)
		}
		if postID.Int64 != 0 && counter.Int64 > 0 {
			answers[postID.Int64] = int(counter.Int64)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("wpsource: correct answers: %w", err)
	}
	return answers, nil
}

// Votes returns every poll_votes row in insertion order.
func (r *Reader) Votes(ctx context.Context) ([]VoteRow, error) {
	query := fmt.Sprintf(
		`SELECT id, post_id, user_id, vote_cont, data_vote
		 FROM %s
		 ORDER BY id ASC`,
		r.table("poll_votes"))

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		if missingSchema(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("wpsource: votes: %w", err)
	}
	defer rows.Close()

	var votes []VoteRow
	for rows.Next() {
		var v VoteRow
		var id, postID, userID, counter sql.NullInt64
		var date sql.NullString
		if err := rows.Scan(&id, &postID, &userID, &counter, &date); err != nil {
			return nil, fmt.Errorf("wpsource: votes: %w", err)
		}
		v.ID = id.Int64
		v.PostID = postID.Int64
		v.UserID = userID.Int64
		v.Counter = int(counter.Int64)
		v.Date = date.String
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("wpsource: votes: %w", err)
	}
	return votes, nil
}

// Likes returns the active post_likes rows.
func (r *Reader) Likes(ctx context.Context) ([]LikeRow, error) {
	query := fmt.Sprintf(
		`SELECT post_id, user_id FROM %s WHERE liked = 1`,
		r.table("post_likes"))

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		if missingSchema(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("wpsource: likes: %w", err)
	}
	defer rows.Close()

	var likes []LikeRow
	for rows.Next() {
		var postID, userID sql.NullInt64
		if err := rows.Scan(&postID, &userID); err != nil {
			return nil, fmt.Errorf("wpsource: likes: %w", err)
		}
		likes = append(likes, LikeRow{PostID: postID.Int64, UserID: userID.Int64})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("wpsource: likes: %w", err)
	}
	return likes, nil
}

// Complaints returns every complaints row.
func (r *Reader) Complaints(ctx context.Context) ([]ComplaintRow, error) {
	query := fmt.Sprintf(
		`SELECT id, post_id, user_id, complaint_text, date FROM %s`,
		r.table("complaints"))

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		if missingSchema(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("wpsource: complaints: %w", err)
	}
	defer rows.Close()

	var complaints []ComplaintRow
	for rows.Next() {
		var c ComplaintRow
		var id, postID sql.NullInt64
		var text, date sql.NullString
		if err := rows.Scan(&id, &postID, &c.UserID, &text, &date); err != nil {
			return nil, fmt.Errorf("wpsource: complaints: %w", err)
		}
		c.ID = id.Int64
		c.PostID = postID.Int64
		c.Text = text.String
		c.Date = date.String
		complaints = append(complaints, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("wpsource: complaints: %w", err)
	}
	return complaints, nil
}

// PointsHistory returns every points_history row in insertion order.
func (r *Reader) PointsHistory(ctx context.Context) ([]PointsRow, error) {
	query := fmt.Sprintf(
		`SELECT id, user_id, points, calculation_date, comment FROM %s ORDER BY id ASC`,
		r.table("points_history"))

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		if missingSchema(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("wpsource: points history: %w", err)
	}
	defer rows.Close()

	var history []PointsRow
	for rows.Next() {
		var h PointsRow
		var id, userID sql.NullInt64
		var date, comment sql.NullString
		if err := rows.Scan(&id, &userID, &h.Points, &date, &comment); err != nil {
			return nil, fmt.Errorf("wpsource: points history: %w", err)
		}
		h.ID = id.Int64
		h.UserID = userID.Int64
		h.Date = date.String
		h.Comment = comment.String
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("wpsource: points history: %w", err)
	}
	return history, nil
}
