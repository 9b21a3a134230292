// dao/registry_dao.go
package dao

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	dirsync_errors "github.com/dev-mohitbeniwal/dirsync/errors"
	logger "github.com/dev-mohitbeniwal/dirsync/logging"
	"github.com/dev-mohitbeniwal/dirsync/model"
	dirsync_neo4j "github.com/dev-mohitbeniwal/dirsync/model/neo4j"
	"github.com/dev-mohitbeniwal/dirsync/registry"
)

// RegistryDAO is the Neo4j-backed view onto the source registry. The
// registry graph is maintained by the loader jobs; this DAO only reads it.
type RegistryDAO struct {
	Driver neo4j.Driver
}

var _ registry.Registry = &RegistryDAO{}

func NewRegistryDAO(driver neo4j.Driver) *RegistryDAO {
	return &RegistryDAO{Driver: driver}
}

func (dao *RegistryDAO) FindGroup(ctx context.Context, name string) (*model.Group, error) {
	start := time.Now()

	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (g:` + dirsync_neo4j.LabelGroup + ` {` + dirsync_neo4j.AttrName + `: $name})
        RETURN g
        `
		res, err := tx.Run(query, map[string]interface{}{"name": name})
		if err != nil {
			return nil, dirsync_errors.ErrDatabaseOperation
		}

		if res.Next() {
			node := res.Record().Values[0].(neo4j.Node)
			return mapNodeToGroup(node), nil
		}

		return nil, nil
	})

	if err != nil {
		logger.Error("Failed to find group",
			zap.Error(err),
			zap.String("groupName", name),
			zap.Duration("duration", time.Since(start)))
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	return result.(*model.Group), nil
}

func (dao *RegistryDAO) FindStem(ctx context.Context, name string) (*model.Stem, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (s:` + dirsync_neo4j.LabelStem + ` {` + dirsync_neo4j.AttrName + `: $name})
        RETURN s
        `
		res, err := tx.Run(query, map[string]interface{}{"name": name})
		if err != nil {
			return nil, dirsync_errors.ErrDatabaseOperation
		}

		if res.Next() {
			node := res.Record().Values[0].(neo4j.Node)
			return mapNodeToStem(node), nil
		}

		return nil, nil
	})

	if err != nil {
		logger.Error("Failed to find stem", zap.Error(err), zap.String("stemName", name))
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	return result.(*model.Stem), nil
}

func (dao *RegistryDAO) FindSubject(ctx context.Context, sourceID, subjectID string) (*model.Subject, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (s:` + dirsync_neo4j.LabelSubject + ` {` + dirsync_neo4j.AttrSourceID + `: $sourceId, ` + dirsync_neo4j.AttrID + `: $subjectId})
        RETURN s
        `
		res, err := tx.Run(query, map[string]interface{}{
			"sourceId":  sourceID,
			"subjectId": subjectID,
		})
		if err != nil {
			return nil, dirsync_errors.ErrDatabaseOperation
		}

		if res.Next() {
			node := res.Record().Values[0].(neo4j.Node)
			return mapNodeToSubject(node), nil
		}

		return nil, nil
	})

	if err != nil {
		logger.Error("Failed to find subject",
			zap.Error(err),
			zap.String("sourceID", sourceID),
			zap.String("subjectID", subjectID))
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	return result.(*model.Subject), nil
}

func (dao *RegistryDAO) FindSyncMarker(ctx context.Context, name string) (string, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (a:` + dirsync_neo4j.LabelAttributeDefName + ` {` + dirsync_neo4j.AttrName + `: $name})
        RETURN a.` + dirsync_neo4j.AttrID + ` AS id
        `
		res, err := tx.Run(query, map[string]interface{}{"name": name})
		if err != nil {
			return nil, dirsync_errors.ErrDatabaseOperation
		}

		if res.Next() {
			return res.Record().Values[0].(string), nil
		}

		return nil, dirsync_errors.ErrSyncMarkerNotFound
	})

	if err != nil {
		logger.Error("Failed to find sync marker", zap.Error(err), zap.String("markerName", name))
		return "", err
	}

	return result.(string), nil
}

func (dao *RegistryDAO) HasGroupAssignment(ctx context.Context, groupName, markerID string) (bool, error) {
	return dao.hasAssignment(ctx, dirsync_neo4j.LabelGroup, groupName, markerID)
}

func (dao *RegistryDAO) HasStemAssignment(ctx context.Context, stemName, markerID string) (bool, error) {
	return dao.hasAssignment(ctx, dirsync_neo4j.LabelStem, stemName, markerID)
}

func (dao *RegistryDAO) hasAssignment(ctx context.Context, ownerLabel, ownerName, markerID string) (bool, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (o:` + ownerLabel + ` {` + dirsync_neo4j.AttrName + `: $name})
              -[:` + dirsync_neo4j.RelAssigned + `]->
              (a:` + dirsync_neo4j.LabelAttributeDefName + ` {` + dirsync_neo4j.AttrID + `: $markerId})
        RETURN count(a) > 0 AS assigned
        `
		res, err := tx.Run(query, map[string]interface{}{
			"name":     ownerName,
			"markerId": markerID,
		})
		if err != nil {
			return nil, dirsync_errors.ErrDatabaseOperation
		}

		if res.Next() {
			return res.Record().Values[0].(bool), nil
		}

		return false, nil
	})

	if err != nil {
		logger.Error("Failed to check marker assignment",
			zap.Error(err),
			zap.String("owner", ownerName),
			zap.String("markerID", markerID))
		return false, err
	}

	return result.(bool), nil
}

func (dao *RegistryDAO) StemsWithAssignment(ctx context.Context, markerID string) ([]*model.Stem, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (s:` + dirsync_neo4j.LabelStem + `)
              -[:` + dirsync_neo4j.RelAssigned + `]->
              (a:` + dirsync_neo4j.LabelAttributeDefName + ` {` + dirsync_neo4j.AttrID + `: $markerId})
        RETURN s
        `
		res, err := tx.Run(query, map[string]interface{}{"markerId": markerID})
		if err != nil {
			return nil, dirsync_errors.ErrDatabaseOperation
		}

		var stems []*model.Stem
		for res.Next() {
			node := res.Record().Values[0].(neo4j.Node)
			stems = append(stems, mapNodeToStem(node))
		}
		return stems, nil
	})

	if err != nil {
		logger.Error("Failed to enumerate stems with marker assignment",
			zap.Error(err),
			zap.String("markerID", markerID))
		return nil, err
	}

	return result.([]*model.Stem), nil
}

func (dao *RegistryDAO) GroupsWithAssignment(ctx context.Context, markerID string) ([]*model.Group, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (g:` + dirsync_neo4j.LabelGroup + `)
              -[:` + dirsync_neo4j.RelAssigned + `]->
              (a:` + dirsync_neo4j.LabelAttributeDefName + ` {` + dirsync_neo4j.AttrID + `: $markerId})
        RETURN g
        `
		res, err := tx.Run(query, map[string]interface{}{"markerId": markerID})
		if err != nil {
			return nil, dirsync_errors.ErrDatabaseOperation
		}

		var groups []*model.Group
		for res.Next() {
			node := res.Record().Values[0].(neo4j.Node)
			groups = append(groups, mapNodeToGroup(node))
		}
		return groups, nil
	})

	if err != nil {
		logger.Error("Failed to enumerate groups with marker assignment",
			zap.Error(err),
			zap.String("markerID", markerID))
		return nil, err
	}

	return result.([]*model.Group), nil
}

func (dao *RegistryDAO) ChildGroups(ctx context.Context, stemName string, scope registry.ChildScope) ([]*model.Group, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		// Names encode the namespace path, so a prefix match covers the
		// whole subtree without walking CHILD_OF edges.
		query := `
        MATCH (g:` + dirsync_neo4j.LabelGroup + `)
        WHERE g.` + dirsync_neo4j.AttrName + ` STARTS WITH $prefix
        RETURN g
        `
		if scope == registry.ScopeOne {
			query = `
        MATCH (g:` + dirsync_neo4j.LabelGroup + `)
              -[:` + dirsync_neo4j.RelChildOf + `]->
              (s:` + dirsync_neo4j.LabelStem + ` {` + dirsync_neo4j.AttrName + `: $name})
        RETURN g
        `
		}

		res, err := tx.Run(query, map[string]interface{}{
			"prefix": stemName + model.NameSeparator,
			"name":   stemName,
		})
		if err != nil {
			return nil, dirsync_errors.ErrDatabaseOperation
		}

		var groups []*model.Group
		for res.Next() {
			node := res.Record().Values[0].(neo4j.Node)
			groups = append(groups, mapNodeToGroup(node))
		}
		return groups, nil
	})

	if err != nil {
		logger.Error("Failed to enumerate child groups",
			zap.Error(err),
			zap.String("stemName", stemName),
			zap.String("scope", string(scope)))
		return nil, err
	}

	return result.([]*model.Group), nil
}

func (dao *RegistryDAO) GroupMembers(ctx context.Context, groupName string) ([]model.Member, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (g:` + dirsync_neo4j.LabelGroup + ` {` + dirsync_neo4j.AttrName + `: $name})
              -[m:` + dirsync_neo4j.RelHasMember + `]->
              (s:` + dirsync_neo4j.LabelSubject + `)
        RETURN s.` + dirsync_neo4j.AttrID + ` AS subjectId,
               s.` + dirsync_neo4j.AttrSourceID + ` AS sourceId,
               m.` + dirsync_neo4j.AttrMemberType + ` AS memberType
        `
		res, err := tx.Run(query, map[string]interface{}{"name": groupName})
		if err != nil {
			return nil, dirsync_errors.ErrDatabaseOperation
		}

		var members []model.Member
		for res.Next() {
			record := res.Record()
			member := model.Member{
				SubjectID: record.Values[0].(string),
				SourceID:  record.Values[1].(string),
				Type:      model.MemberTypePerson,
			}
			if record.Values[2] != nil {
				member.Type = record.Values[2].(string)
			}
			members = append(members, member)
		}
		return members, nil
	})

	if err != nil {
		logger.Error("Failed to retrieve group members",
			zap.Error(err),
			zap.String("groupName", groupName))
		return nil, err
	}

	return result.([]model.Member), nil
}

func (dao *RegistryDAO) ChangeLogEntries(ctx context.Context, afterSequence int64, limit int) ([]model.ChangeLogEntry, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	result, err := session.ReadTransaction(func(tx neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (c:` + dirsync_neo4j.LabelChangeLogEntry + `)
        WHERE c.` + dirsync_neo4j.AttrSequence + ` > $afterSequence
        RETURN c
        ORDER BY c.` + dirsync_neo4j.AttrSequence + ` ASC
        LIMIT $limit
        `
		res, err := tx.Run(query, map[string]interface{}{
			"afterSequence": afterSequence,
			"limit":         limit,
		})
		if err != nil {
			return nil, dirsync_errors.ErrDatabaseOperation
		}

		var entries []model.ChangeLogEntry
		for res.Next() {
			node := res.Record().Values[0].(neo4j.Node)
			entries = append(entries, mapNodeToChangeLogEntry(node))
		}
		return entries, nil
	})

	if err != nil {
		logger.Error("Failed to read changelog records",
			zap.Error(err),
			zap.Int64("afterSequence", afterSequence))
		return nil, err
	}

	return result.([]model.ChangeLogEntry), nil
}

func mapNodeToChangeLogEntry(node neo4j.Node) model.ChangeLogEntry {
	entry := model.ChangeLogEntry{}
	if v, ok := node.Props[dirsync_neo4j.AttrSequence].(int64); ok {
		entry.Sequence = v
	}
	if v, ok := node.Props[dirsync_neo4j.AttrCategory].(string); ok {
		entry.Category = model.ChangeCategory(v)
	}
	if v, ok := node.Props[dirsync_neo4j.AttrGroupName].(string); ok {
		entry.GroupName = v
	}
	if v, ok := node.Props[dirsync_neo4j.AttrStemName].(string); ok {
		entry.StemName = v
	}
	if v, ok := node.Props[dirsync_neo4j.AttrSubjectID].(string); ok {
		entry.SubjectID = v
	}
	if v, ok := node.Props[dirsync_neo4j.AttrSourceID].(string); ok {
		entry.SourceID = v
	}
	if v, ok := node.Props[dirsync_neo4j.AttrOccurredAt].(time.Time); ok {
		entry.OccurredAt = v
	}
	return entry
}

func mapNodeToGroup(node neo4j.Node) *model.Group {
	group := &model.Group{}
	if v, ok := node.Props[dirsync_neo4j.AttrID].(string); ok {
		group.ID = v
	}
	if v, ok := node.Props[dirsync_neo4j.AttrName].(string); ok {
		group.Name = v
	}
	if v, ok := node.Props[dirsync_neo4j.AttrDisplayExtension].(string); ok {
		group.DisplayExtension = v
	}
	if v, ok := node.Props[dirsync_neo4j.AttrDescription].(string); ok {
		group.Description = v
	}
	return group
}

func mapNodeToStem(node neo4j.Node) *model.Stem {
	stem := &model.Stem{}
	if v, ok := node.Props[dirsync_neo4j.AttrID].(string); ok {
		stem.ID = v
	}
	if v, ok := node.Props[dirsync_neo4j.AttrName].(string); ok {
		stem.Name = v
	}
	if v, ok := node.Props[dirsync_neo4j.AttrDisplayName].(string); ok {
		stem.DisplayName = v
	}
	return stem
}

func mapNodeToSubject(node neo4j.Node) *model.Subject {
	subject := &model.Subject{Attributes: make(map[string]string)}
	for key, value := range node.Props {
		str, ok := value.(string)
		if !ok {
			continue
		}
		switch key {
		case dirsync_neo4j.AttrID:
			subject.ID = str
		case dirsync_neo4j.AttrSourceID:
			subject.SourceID = str
		case dirsync_neo4j.AttrName:
			subject.Name = str
		default:
			subject.Attributes[key] = str
		}
	}
	return subject
}
