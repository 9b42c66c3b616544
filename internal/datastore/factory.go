package datastore

import (
	"context"

	"github.com/agrisense/farm-advisor/internal/conf"
	"github.com/agrisense/farm-advisor/internal/errors"
)

// New opens the credential store selected by settings.Type.
func New(ctx context.Context, settings *conf.DatastoreSettings) (CredentialStore, error) {
	switch settings.Type {
	case conf.DatastoreSQLite, "":
		return OpenSQLite(settings.SQLite.Path)
	case conf.DatastoreMySQL:
		return OpenMySQL(settings.MySQL)
	case conf.DatastoreMongoDB:
		return OpenMongo(ctx, settings.MongoDB)
	default:
		return nil, errors.Newf("unsupported datastore type %q", settings.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}
