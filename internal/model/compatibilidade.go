package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// CompatibilidadeVeiculo maps a vehicle to the part codes that fit it.
// Codes are plain strings resolved against pecas at query time.
type CompatibilidadeVeiculo struct {
	Base
	Marca        string     `json:"marca" gorm:"index;not null" validate:"required"`
	Modelo       string     `json:"modelo" gorm:"not null" validate:"required"`
	Ano          *int       `json:"ano,omitempty"`
	CategoriaID  string     `json:"categoria_id" gorm:"index"`
	CodigosPecas StringList `json:"codigos_pecas" gorm:"type:jsonb"`
}

func (CompatibilidadeVeiculo) TableName() string      { return CollCompatibilidade }
func (CompatibilidadeVeiculo) CollectionName() string { return CollCompatibilidade }

// StringList is stored as a JSON array column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("string list: unsupported type %T", src)
	}
	return json.Unmarshal(raw, (*[]string)(l))
}
