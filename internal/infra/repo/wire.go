package repo

import (
	"go_request_guard/internal/infra/storage"

	"github.com/google/wire"
)

// Reposet builds the MySQL + Redis backed repository.
var Reposet = wire.NewSet(
	NewRuleRepoConfig,
	storage.StorageSet,
	NewRuleRepoImpl,
)
