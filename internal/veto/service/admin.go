package service

import (
	"github.com/louisbranch/mapveto/internal/veto/adminauth"
	"github.com/louisbranch/mapveto/internal/veto/audit"
)

// AuthorizeAdmin verifies an administrator grant and returns the actor to
// attribute subsequent session mutations to. Verification keys are read from
// the environment so key rotation does not require a restart.
func (s *Service) AuthorizeAdmin(grant string) (audit.Actor, error) {
	cfg, err := adminauth.LoadConfigFromEnv(s.clock)
	if err != nil {
		return audit.Actor{}, err
	}
	identity, err := adminauth.Verify(grant, cfg)
	if err != nil {
		return audit.Actor{}, err
	}
	return audit.Admin(identity.UserID), nil
}
