package session

import (
	"github.com/territorium/servertools/internal/command"
	"github.com/territorium/servertools/internal/model"
)

// AddWebModule appends m. With a module target the module is also attached
// to the running server, in the same undo unit.
func (s *Session) AddWebModule(m model.WebModule) error {
	return s.AddWebModuleAt(-1, m)
}

// AddWebModuleAt inserts m at index.
func (s *Session) AddWebModuleAt(index int, m model.WebModule) error {
	add := command.NewAddWebModuleAt(s.cfg, index, m)
	if s.target == nil {
		return s.Execute(add)
	}
	attach := command.NewAttachModule(s.target, m)
	attach.SetLogger(s.logger.WithComponent("command"))
	return s.hist.ExecuteGrouped(add.Label(), add, attach)
}

// ModifyWebModule replaces the fields of the module at index.
func (s *Session) ModifyWebModule(index int, m model.WebModule) error {
	return s.Execute(command.NewModifyWebModule(s.cfg, index, m))
}

// RemoveWebModule removes the module at index. With a module target it is
// detached from the running server first.
func (s *Session) RemoveWebModule(index int) error {
	remove := command.NewRemoveWebModule(s.cfg, index)
	if s.target == nil {
		return s.Execute(remove)
	}
	m, err := s.cfg.WebModule(index)
	if err != nil {
		return err
	}
	detach := command.NewDetachModule(s.target, m)
	detach.SetLogger(s.logger.WithComponent("command"))
	return s.hist.ExecuteGrouped("Remove web module "+m.Path, detach, remove)
}

// AddMimeMapping appends m.
func (s *Session) AddMimeMapping(m model.MimeMapping) error {
	return s.Execute(command.NewAddMimeMapping(s.cfg, m))
}

// ModifyMimeMapping replaces the mapping at index.
func (s *Session) ModifyMimeMapping(index int, m model.MimeMapping) error {
	return s.Execute(command.NewModifyMimeMapping(s.cfg, index, m))
}

// RemoveMimeMapping removes the mapping at index.
func (s *Session) RemoveMimeMapping(index int) error {
	return s.Execute(command.NewRemoveMimeMapping(s.cfg, index))
}

// ModifyPort sets the port with id.
func (s *Session) ModifyPort(id string, port int) error {
	return s.Execute(command.NewModifyPort(s.cfg, id, port))
}

// SetDebug sets debug launch mode.
func (s *Session) SetDebug(v bool) error {
	return s.Execute(command.NewSetDebugMode(s.w, v))
}

// SetSecure sets the security manager flag.
func (s *Session) SetSecure(v bool) error {
	return s.Execute(command.NewSetSecure(s.w, v))
}

// SetDeployDirectory sets the deploy directory.
func (s *Session) SetDeployDirectory(dir string) error {
	return s.Execute(command.NewSetDeployDirectory(s.w, dir))
}

// SetInstanceDirectory sets the instance directory.
func (s *Session) SetInstanceDirectory(dir string) error {
	return s.Execute(command.NewSetInstanceDirectory(s.w, dir))
}

// SetTestEnvironment sets test environment mode.
func (s *Session) SetTestEnvironment(v bool) error {
	return s.Execute(command.NewSetTestEnvironment(s.w, v))
}

// SetModulesReloadableByDefault sets the default reloadable flag.
func (s *Session) SetModulesReloadableByDefault(v bool) error {
	return s.Execute(command.NewSetModulesReloadableByDefault(s.w, v))
}

// SetSaveSeparateContextFiles sets separate context file saving.
func (s *Session) SetSaveSeparateContextFiles(v bool) error {
	return s.Execute(command.NewSetSaveSeparateContextFiles(s.w, v))
}

// SetServeModulesWithoutPublish sets serving modules in place.
func (s *Session) SetServeModulesWithoutPublish(v bool) error {
	return s.Execute(command.NewSetServeModulesWithoutPublish(s.w, v))
}
