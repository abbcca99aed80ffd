package model

// Categoria groups parts (filtros, travões, suspensão, ...).
type Categoria struct {
	Base
	Nome      string `json:"nome" gorm:"not null" validate:"required,max=120"`
	Descricao string `json:"descricao"`
}

func (Categoria) TableName() string      { return CollCategorias }
func (Categoria) CollectionName() string { return CollCategorias }

// Tipo is a sub-classification that belongs to one Categoria.
type Tipo struct {
	Base
	Nome        string `json:"nome" gorm:"not null" validate:"required,max=120"`
	CategoriaID string `json:"categoria_id" gorm:"index"`
}

func (Tipo) TableName() string      { return CollTipos }
func (Tipo) CollectionName() string { return CollTipos }

// Fornecedor is a supplier referenced by parts and stock entries.
type Fornecedor struct {
	Base
	Nome     string `json:"nome" gorm:"not null" validate:"required,max=200"`
	Contato  string `json:"contato"`
	Telefone string `json:"telefone"`
	Email    string `json:"email" validate:"omitempty,email"`
	Endereco string `json:"endereco"`
}

func (Fornecedor) TableName() string      { return CollFornecedores }
func (Fornecedor) CollectionName() string { return CollFornecedores }
