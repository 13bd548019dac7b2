package redisstore

import (
	"context"
	"fmt"
	"time"

	"wifidog-auth/internal/common/database"
	"wifidog-auth/internal/models"
	"wifidog-auth/internal/storage"
)

// UserRepository keeps portal accounts as hashes with a unique username index.
type UserRepository struct {
	client *database.RedisClient
}

func NewUserRepository(client *database.RedisClient) *UserRepository {
	return &UserRepository{client: client}
}

func (r *UserRepository) userKey(id string) string { return r.client.Key("user", id) }
func (r *UserRepository) usernameKey(name string) string {
	return r.client.Key("user", "username", name)
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	active := "0"
	if u.IsActive {
		active = "1"
	}
	created, err := createUserLua.Run(ctx, r.client.Client,
		[]string{r.usernameKey(u.Username), r.userKey(u.ID)},
		u.ID, u.Username, u.Email, u.PasswordHash, active, ms(u.CreatedAt),
	).Int()
	if err != nil {
		return wrap("create user", err)
	}
	if created == 0 {
		return fmt.Errorf("%w: %s", storage.ErrDuplicateUser, u.Username)
	}
	return nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	id, err := r.client.Client.Get(ctx, r.usernameKey(username)).Result()
	if err != nil {
		return nil, wrap("find user by username", err)
	}
	return r.FindByID(ctx, id)
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	f, err := r.client.Client.HGetAll(ctx, r.userKey(id)).Result()
	if err != nil {
		return nil, wrap("find user by id", err)
	}
	if len(f) == 0 {
		return nil, fmt.Errorf("%w: user %s", storage.ErrNotFound, id)
	}
	u := &models.User{
		ID:           f["id"],
		Username:     f["username"],
		Email:        f["email"],
		PasswordHash: f["password_hash"],
		IsActive:     f["active"] == "1",
		CreatedAt:    fromMS(f["created"]),
	}
	if v, ok := f["last_login"]; ok {
		t := fromMS(v)
		u.LastLogin = &t
	}
	return u, nil
}

func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	exists, err := r.client.Client.Exists(ctx, r.userKey(id)).Result()
	if err != nil {
		return wrap("set user active", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: user %s", storage.ErrNotFound, id)
	}
	flag := "0"
	if active {
		flag = "1"
	}
	if err := r.client.Client.HSet(ctx, r.userKey(id), "active", flag).Err(); err != nil {
		return wrap("set user active", err)
	}
	return nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	if err := r.client.Client.HSet(ctx, r.userKey(id), "last_login", ms(at)).Err(); err != nil {
		return wrap("update last login", err)
	}
	return nil
}
