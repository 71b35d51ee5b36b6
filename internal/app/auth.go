package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"quiz-room-service/internal/domain"
)

// HashCredential hashes a join secret with bcrypt.
func HashCredential(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Authenticator is the join gate: it checks a supplied secret against the
// room's stored credential hash.
type Authenticator struct {
	rooms RoomRepository

	decoyOnce sync.Once
	decoy     []byte
}

func NewAuthenticator(rooms RoomRepository) *Authenticator {
	return &Authenticator{rooms: rooms}
}

// Authenticate returns the room when credential matches. It fails with
// domain.ErrRoomNotFound or domain.ErrInvalidCredential.
func (a *Authenticator) Authenticate(ctx context.Context, roomID, credential string) (domain.Room, error) {
	room, err := a.rooms.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			// spend the same hashing time as a real comparison
			_ = bcrypt.CompareHashAndPassword(a.decoyHash(), []byte(credential))
			return domain.Room{}, domain.ErrRoomNotFound
		}
		return domain.Room{}, fmt.Errorf("load room: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(room.CredentialHash), []byte(credential)); err != nil {
		return domain.Room{}, domain.ErrInvalidCredential
	}
	return room, nil
}

func (a *Authenticator) decoyHash() []byte {
	a.decoyOnce.Do(func() {
		a.decoy, _ = bcrypt.GenerateFromPassword([]byte("decoy-credential"), bcrypt.DefaultCost)
	})
	return a.decoy
}
