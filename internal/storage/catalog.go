package storage

// Catalog bundles the Postgres repositories that hold everything except
// chunks: registered sources, answer runs and the provider call audit.
type Catalog struct {
	*SourceRepo
	*AnswerRunRepo
	*LLMAuditRepo
	db *DB
}

func NewCatalog(db *DB) *Catalog {
	return &Catalog{
		SourceRepo:    NewSourceRepo(db),
		AnswerRunRepo: NewAnswerRunRepo(db),
		LLMAuditRepo:  NewLLMAuditRepo(db),
		db:            db,
	}
}

func (c *Catalog) Close() error {
	c.db.Close()
	return nil
}
