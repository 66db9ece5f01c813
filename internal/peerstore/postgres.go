package peerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// PeerModel is the peers table row.
type PeerModel struct {
	ID                  string    `gorm:"primaryKey;type:text" json:"id"`
	Name                *string   `gorm:"type:text" json:"name"`
	Addresses           string    `gorm:"type:text;not null;default:'[]'" json:"addresses"`
	Reputation          float64   `gorm:"not null;default:0.5" json:"reputation"`
	ReputationUpdatedAt time.Time `json:"reputation_updated_at"`
	CreatedAt           time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (PeerModel) TableName() string {
	return "peers"
}

// PostgresStore persists peers through gorm.
type PostgresStore struct {
	db *gorm.DB
}

// OpenPostgresStore connects to dsn and migrates the peers table.
func OpenPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewPostgresStore(db)
}

func NewPostgresStore(db *gorm.DB) (*PostgresStore, error) {
	if err := db.AutoMigrate(&PeerModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate peers table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) ListPeers(ctx context.Context) ([]Record, error) {
	var rows []PeerModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, storeErr("list", err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, storeErr("list", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// UpsertPeer updates identity columns on conflict and leaves reputation alone.
func (s *PostgresStore) UpsertPeer(ctx context.Context, info PeerInfo) error {
	row, err := modelFromInfo(info)
	if err != nil {
		return storeErr("upsert", err)
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "addresses", "updated_at"}),
		}).
		Create(&row).Error
	return storeErr("upsert", err)
}

func (s *PostgresStore) RemovePeer(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Delete(&PeerModel{}, "id = ?", id).Error
	return storeErr("remove", err)
}

func (s *PostgresStore) SetReputation(ctx context.Context, id string, score float64) error {
	result := s.db.WithContext(ctx).
		Model(&PeerModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"reputation":            score,
			"reputation_updated_at": time.Now(),
		})
	if result.Error != nil {
		return storeErr("set_reputation", result.Error)
	}
	if result.RowsAffected == 0 {
		return storeErr("set_reputation", ErrPeerNotFound)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func modelFromInfo(info PeerInfo) (PeerModel, error) {
	if info.ID == "" {
		return PeerModel{}, errors.New("peer id is required")
	}
	addrs := info.Addresses
	if addrs == nil {
		addrs = []string{}
	}
	raw, err := json.Marshal(addrs)
	if err != nil {
		return PeerModel{}, err
	}
	return PeerModel{
		ID:                  info.ID,
		Name:                info.Name,
		Addresses:           string(raw),
		Reputation:          DefaultReputation,
		ReputationUpdatedAt: time.Now(),
	}, nil
}

func (m PeerModel) toRecord() (Record, error) {
	rec := Record{
		Info: PeerInfo{ID: m.ID, Name: m.Name},
		Reputation: Reputation{
			Score:     m.Reputation,
			UpdatedAt: m.ReputationUpdatedAt,
		},
	}
	if m.Addresses != "" {
		if err := json.Unmarshal([]byte(m.Addresses), &rec.Info.Addresses); err != nil {
			return Record{}, fmt.Errorf("invalid addresses for peer %s: %w", m.ID, err)
		}
	}
	return rec, nil
}
