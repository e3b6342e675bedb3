/*
Copyright 2025 Surge Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package surge

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/surgekit/surge/config"
	"github.com/surgekit/surge/internal/apierror"
	"github.com/surgekit/surge/internal/rediskey"
	"github.com/surgekit/surge/model"
)

// Register creates a user account with a bcrypt-hashed password.
func (s *Surge) Register(ctx context.Context, username, password, phone string) (*model.User, error) {
	if username == "" || password == "" {
		return nil, apierror.NewFromCode(apierror.CodeBadRequest)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username: username,
		Password: string(hashed),
		Phone:    phone,
		Status:   model.UserStatusActive,
	}
	created, err := s.datasource.CreateUser(ctx, user)
	if err != nil {
		return nil, err
	}
	logrus.Infof("user registered - userId: %d, username: %s", created.ID, created.Username)
	return created, nil
}

// Login verifies credentials and issues a signed token. The token is
// also stored in the fast store keyed by user id, so a later login
// invalidates the previous session.
func (s *Surge) Login(ctx context.Context, username, password string) (*model.User, string, error) {
	user, err := s.datasource.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, "", err
	}
	if user.Status == model.UserStatusDisabled {
		return nil, "", apierror.NewFromCode(apierror.CodeUserDisabled)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, "", apierror.NewFromCode(apierror.CodePasswordError)
	}

	signed, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Fetch()
	if err != nil {
		return nil, "", err
	}
	ttl := time.Duration(cfg.Jwt.ExpireHours) * time.Hour
	if err := s.redis.Set(ctx, rediskey.UserToken(user.ID), signed, ttl).Err(); err != nil {
		return nil, "", err
	}

	logrus.Infof("user logged in - userId: %d", user.ID)
	return user, signed, nil
}

// Logout drops the stored session token.
func (s *Surge) Logout(ctx context.Context, userID int64) error {
	return s.redis.Del(ctx, rediskey.UserToken(userID)).Err()
}

// GetUser returns the user's profile.
func (s *Surge) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	return s.datasource.GetUserByID(ctx, userID)
}
