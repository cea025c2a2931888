package stubserver

import (
	"errors"
	"strings"
	"time"

	"vicinity/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// User is a registered account on the stub backend.
type User struct {
	ID        string `gorm:"primaryKey"`
	Email     string `gorm:"uniqueIndex;not null"`
	Password  string `gorm:"not null"`
	Nickname  string
	Avatar    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Post is a stored feed entry. Images are kept as a newline-joined list;
// the stub has no media pipeline.
type Post struct {
	ID          string `gorm:"primaryKey"`
	Title       string `gorm:"not null"`
	Description string `gorm:"type:text"`
	Location    string `gorm:"index"`
	Images      string
	Video       string
	Shares      int
	UserID      string `gorm:"not null;index"`
	User        User   `gorm:"foreignKey:UserID"`
	CreatedAt   time.Time
}

// Love marks that a user loves a post.
type Love struct {
	UserID string `gorm:"primaryKey"`
	PostID string `gorm:"primaryKey"`
}

// Collect marks that a user bookmarked a post.
type Collect struct {
	UserID string `gorm:"primaryKey"`
	PostID string `gorm:"primaryKey"`
}

// Follow marks that a user follows another user.
type Follow struct {
	FollowerID string `gorm:"primaryKey"`
	FolloweeID string `gorm:"primaryKey"`
}

// Store wraps the sqlite database behind the stub backend.
type Store struct {
	db *gorm.DB
}

// OpenStore opens (or creates) the sqlite database at path and migrates the
// schema. Use ":memory:" for tests.
func OpenStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&User{}, &Post{}, &Love{}, &Collect{}, &Follow{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// CreateUser inserts a new account.
func (s *Store) CreateUser(u *User) error {
	return s.db.Create(u).Error
}

// GetUserByEmail returns the account with the given email, or nil.
func (s *Store) GetUserByEmail(email string) (*User, error) {
	var u User
	err := s.db.Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID returns the account with the given id, or nil.
func (s *Store) GetUserByID(id string) (*User, error) {
	var u User
	err := s.db.Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreatePost inserts a post.
func (s *Store) CreatePost(p *Post) error {
	return s.db.Create(p).Error
}

// CountUsers returns the number of registered accounts.
func (s *Store) CountUsers() (int64, error) {
	var n int64
	err := s.db.Model(&User{}).Count(&n).Error
	return n, err
}

// ListPosts returns one page of posts for the given tab plus the total
// matching count. The following tab restricts to publishers the viewer
// follows; a non-empty location filters by substring match.
func (s *Store) ListPosts(tab models.FeedTab, viewerID, location string, page, limit int) ([]Post, int64, error) {
	query := s.db.Model(&Post{}).Preload("User")

	if location != "" {
		query = query.Where("location LIKE ?", "%"+location+"%")
	}
	if tab == models.TabFollowing {
		query = query.Where("user_id IN (?)",
			s.db.Model(&Follow{}).Select("followee_id").Where("follower_id = ?", viewerID))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []Post
	err := query.Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&posts).Error
	return posts, total, err
}

// PostsByUser returns the latest posts published by a user.
func (s *Store) PostsByUser(userID string, limit int) ([]Post, error) {
	var posts []Post
	err := s.db.Preload("User").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

// GetPost returns the post with the given id, or nil.
func (s *Store) GetPost(id string) (*Post, error) {
	var p Post
	err := s.db.Preload("User").Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetLove sets the love state of (userID, postID) to desired. Idempotent.
func (s *Store) SetLove(userID, postID string, desired bool) error {
	if desired {
		return s.db.Where(Love{UserID: userID, PostID: postID}).
			FirstOrCreate(&Love{UserID: userID, PostID: postID}).Error
	}
	return s.db.Delete(&Love{UserID: userID, PostID: postID}).Error
}

// SetCollect sets the collect state of (userID, postID) to desired. Idempotent.
func (s *Store) SetCollect(userID, postID string, desired bool) error {
	if desired {
		return s.db.Where(Collect{UserID: userID, PostID: postID}).
			FirstOrCreate(&Collect{UserID: userID, PostID: postID}).Error
	}
	return s.db.Delete(&Collect{UserID: userID, PostID: postID}).Error
}

// SetFollow sets the follow state of (followerID, followeeID) to desired.
// Idempotent.
func (s *Store) SetFollow(followerID, followeeID string, desired bool) error {
	if desired {
		return s.db.Where(Follow{FollowerID: followerID, FolloweeID: followeeID}).
			FirstOrCreate(&Follow{FollowerID: followerID, FolloweeID: followeeID}).Error
	}
	return s.db.Delete(&Follow{FollowerID: followerID, FolloweeID: followeeID}).Error
}

// IsFollowing reports whether follower follows followee.
func (s *Store) IsFollowing(followerID, followeeID string) (bool, error) {
	var n int64
	err := s.db.Model(&Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&n).Error
	return n > 0, err
}

// counters aggregates the interaction counts of one post.
func (s *Store) counters(postID string) (models.Counters, error) {
	var loves, collects int64
	if err := s.db.Model(&Love{}).Where("post_id = ?", postID).Count(&loves).Error; err != nil {
		return models.Counters{}, err
	}
	if err := s.db.Model(&Collect{}).Where("post_id = ?", postID).Count(&collects).Error; err != nil {
		return models.Counters{}, err
	}
	return models.Counters{Loves: int(loves), Collects: int(collects)}, nil
}

// viewerFlags returns the viewer's own interaction state on one post. An
// empty viewer yields zero flags.
func (s *Store) viewerFlags(viewerID, postID string) (models.ViewerFlags, error) {
	if viewerID == "" {
		return models.ViewerFlags{}, nil
	}
	var loved, collected int64
	if err := s.db.Model(&Love{}).Where("user_id = ? AND post_id = ?", viewerID, postID).Count(&loved).Error; err != nil {
		return models.ViewerFlags{}, err
	}
	if err := s.db.Model(&Collect{}).Where("user_id = ? AND post_id = ?", viewerID, postID).Count(&collected).Error; err != nil {
		return models.ViewerFlags{}, err
	}
	return models.ViewerFlags{IsLove: loved > 0, IsCollect: collected > 0}, nil
}

// toFeedPost converts a stored post into the wire shape seen by clients.
func (s *Store) toFeedPost(p Post, viewerID string) (models.Post, error) {
	counters, err := s.counters(p.ID)
	if err != nil {
		return models.Post{}, err
	}
	counters.Shares = p.Shares

	flags, err := s.viewerFlags(viewerID, p.ID)
	if err != nil {
		return models.Post{}, err
	}

	followed := false
	if viewerID != "" {
		followed, err = s.IsFollowing(viewerID, p.UserID)
		if err != nil {
			return models.Post{}, err
		}
	}

	var images []string
	if p.Images != "" {
		images = strings.Split(p.Images, "\n")
	}

	return models.Post{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Location:    p.Location,
		Media:       models.Media{Images: images, Video: p.Video},
		Publisher: models.Publisher{
			UserID:     p.UserID,
			Nickname:   p.User.Nickname,
			Avatar:     p.User.Avatar,
			IsFollowed: followed,
		},
		Counters:    counters,
		ViewerFlags: flags,
		CreatedAt:   p.CreatedAt,
	}, nil
}
