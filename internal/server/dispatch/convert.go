package dispatch

import "github.com/dmitrijs2005/kstor/internal/server/models"

func (w metaWire) toModel() models.SecretMeta {
	return models.SecretMeta{App: w.App, Database: w.Database, Login: w.Login, Server: w.Server, URL: w.URL}
}

func metaFromModel(m models.SecretMeta) metaWire {
	return metaWire{App: m.App, Database: m.Database, Login: m.Login, Server: m.Server, URL: m.URL}
}

func groupsToWire(groups []*models.Group) []groupCreatedArgs {
	out := make([]groupCreatedArgs, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupCreatedArgs{GroupID: g.ID, Name: g.Name})
	}
	return out
}

func membersToWire(members []*models.User) []groupMemberWire {
	out := make([]groupMemberWire, 0, len(members))
	for _, u := range members {
		out = append(out, groupMemberWire{UserID: u.ID, Login: u.Login, Name: u.Name, Status: string(u.Status)})
	}
	return out
}
