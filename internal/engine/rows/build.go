package rows

// builder accumulates rows and the facts later blocks depend on.
type builder struct {
	src   Source
	flags Flags
	rows  []Row

	linksBlock bool // create row or active header emitted
	footer     bool // empty list footer emitted
	admins     bool
}

type block func(b *builder)

// blocks run in this order on every build.
var blocks = []block{
	introBlock,
	permanentBlock,
	createBlock,
	activeBlock,
	emptyFooterBlock,
	adminsBlock,
	revokedBlock,
	loadingBlock,
	trailerBlock,
}

// Build recomputes the whole row model from src. It is pure: the same input gives the same rows.
func Build(src Source, flags Flags) Model {
	b := &builder{src: src, flags: flags}
	for _, fn := range blocks {
		fn(b)
	}
	return Model{Rows: b.rows}
}

func (b *builder) structural(kind Kind, role Role) {
	b.rows = append(b.rows, Row{Kind: kind, Role: role})
}

func introBlock(b *builder) {
	if b.flags.OtherAdminMode {
		b.structural(KindHeader, RoleOtherAdminHeader)
		b.structural(KindDivider, RoleOtherAdminDivider)
		return
	}
	if b.flags.Hints {
		b.structural(KindFooter, RoleHelp)
	}
}

func permanentBlock(b *builder) {
	if b.flags.IsPublic {
		b.structural(KindHeader, RolePublicHeader)
	} else {
		b.structural(KindHeader, RolePermanentHeader)
	}
	row := Row{Kind: KindItem, Collection: CollectionPermanent}
	if p := b.src.Permanent(); p != nil {
		row.ID = p.ID
		row.Rev = linkRev(p)
	}
	b.rows = append(b.rows, row)
}

func createBlock(b *builder) {
	if !b.flags.OtherAdminMode {
		b.structural(KindDivider, RolePermanentDivider)
		b.structural(KindAction, RoleCreateLink)
		b.linksBlock = true
		return
	}
	if len(b.src.Active()) > 0 {
		b.structural(KindDivider, RolePermanentDivider)
		b.structural(KindHeader, RoleActiveHeader)
		b.linksBlock = true
	}
}

func activeBlock(b *builder) {
	active := b.src.Active()
	for i := range active {
		b.rows = append(b.rows, Row{
			Kind:       KindItem,
			Collection: CollectionActive,
			Index:      i,
			ID:         active[i].ID,
			Rev:        linkRev(&active[i]),
		})
	}
}

func emptyFooterBlock(b *builder) {
	if !b.flags.Hints || len(b.src.Active()) > 0 {
		return
	}
	if b.flags.OtherAdminMode || !b.flags.CanEdit || b.flags.IsLoadingAny {
		return
	}
	b.structural(KindFooter, RoleCreateHelp)
	b.footer = true
}

func adminsBlock(b *builder) {
	admins := b.src.Admins()
	if b.flags.OtherAdminMode || len(admins) == 0 {
		return
	}
	if !b.footer {
		b.structural(KindDivider, RoleAdminsDivider)
	}
	b.structural(KindHeader, RoleAdminsHeader)
	for i, a := range admins {
		b.rows = append(b.rows, Row{
			Kind:       KindItem,
			Collection: CollectionAdmins,
			Index:      i,
			ID:         a.AdminID,
			Rev:        adminRev(a),
		})
	}
	b.admins = true
}

// revokedBlock opens with a divider unless the block above already ends in a footer. The three
// conditions are checked in order and at most one fires.
func revokedBlock(b *builder) {
	revoked := b.src.Revoked()
	if len(revoked) == 0 {
		return
	}
	switch {
	case b.admins:
		b.structural(KindDivider, RoleRevokedDivider)
	case b.linksBlock && !b.footer:
		b.structural(KindDivider, RoleRevokedDivider)
	case b.flags.OtherAdminMode && len(b.src.Active()) == 0:
		b.structural(KindDivider, RoleRevokedDivider)
	}
	b.structural(KindHeader, RoleRevokedHeader)
	for i := range revoked {
		b.rows = append(b.rows, Row{
			Kind:       KindItem,
			Collection: CollectionRevoked,
			Index:      i,
			ID:         revoked[i].ID,
			Rev:        linkRev(&revoked[i]),
		})
	}
	b.structural(KindDivider, RoleRevokedEndDivider)
	b.structural(KindAction, RoleDeleteAllRevoked)
}

func loadingBlock(b *builder) {
	if b.flags.InSubFetch || b.flags.OtherAdminMode {
		return
	}
	if b.flags.IsLoadingAny || b.flags.HasMoreAny {
		b.structural(KindLoading, RoleLoading)
	}
}

func trailerBlock(b *builder) {
	if !b.flags.Hints {
		return
	}
	if len(b.src.Active()) > 0 || len(b.src.Revoked()) > 0 {
		b.structural(KindDivider, RoleTrailingDivider)
	}
}
