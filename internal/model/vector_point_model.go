package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// VectorCollection registers a named collection and the dimension its
// points must have.
type VectorCollection struct {
	Name      string    `gorm:"type:text;primaryKey"`
	Dimension int       `gorm:"not null"`
	Metric    string    `gorm:"type:text;not null;default:cosine"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (VectorCollection) TableName() string {
	return "vector_collections"
}

// VectorPoint stores one point. The embedding column is declared without a
// fixed dimension so collections of different sizes can share the table.
type VectorPoint struct {
	Collection string          `gorm:"type:text;primaryKey"`
	Id         string          `gorm:"type:text;primaryKey"`
	Embedding  pgvector.Vector `gorm:"type:vector;not null"`
	Payload    datatypes.JSON  `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt  time.Time       `gorm:"autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime"`
}

func (VectorPoint) TableName() string {
	return "vector_points"
}
