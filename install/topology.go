package install

// DatasetSpec is one dataset to create inside a pool. Options are passed
// verbatim as zfs create -o arguments, in order.
type DatasetSpec struct {
	Name    string
	Options []string
}

// PoolSpec describes one pool to create
type PoolSpec struct {
	Name     string
	Device   string   // partition path, by-id when available
	PoolOpts []string // zpool create -o
	FsOpts   []string // zpool create -O (root dataset properties)
	Datasets []DatasetSpec
	BootFS   string // value for the bootfs pool property, empty to skip

	// RestrictFeatures disables every feature not named in PoolOpts
	// (zpool create -d), required for pools GRUB has to read
	RestrictFeatures bool
}

// PoolTopology is the pool layout derived from a partition plan. The boot
// pool is absent on the BIOS-no-hibernation fast path, where the whole disk
// is a single pool.
type PoolTopology struct {
	RPool PoolSpec
	BPool *PoolSpec
}

// Pools returns the pools in creation order (boot pool first when present)
func (t PoolTopology) Pools() []PoolSpec {
	if t.BPool != nil {
		return []PoolSpec{*t.BPool, t.RPool}
	}
	return []PoolSpec{t.RPool}
}

// Feature set GRUB can read; the boot pool never enables anything newer
var bpoolFeatures = []string{
	"feature@async_destroy=enabled",
	"feature@bookmarks=enabled",
	"feature@embedded_data=enabled",
	"feature@empty_bpobj=enabled",
	"feature@enabled_txg=enabled",
	"feature@extensible_dataset=enabled",
	"feature@fletcher4=enabled",
	"feature@hole_birth=enabled",
	"feature@large_blocks=enabled",
	"feature@lz4_compress=enabled",
	"feature@spacemap_histogram=enabled",
}

// The dataset policy is fixed: it does not vary with user input. The
// var/tmp/cache subtrees are excluded from snapshots and stripped of setuid;
// /tmp additionally drops device nodes.
var rpoolDatasets = []DatasetSpec{
	{Name: "ROOT", Options: []string{"canmount=off", "mountpoint=none"}},
	{Name: "ROOT/ubuntu", Options: []string{"canmount=noauto", "mountpoint=/"}},
	{Name: "home", Options: nil},
	{Name: "home/root", Options: []string{"mountpoint=/root"}},
	{Name: "var", Options: []string{"canmount=off"}},
	{Name: "var/log", Options: nil},
	{Name: "var/spool", Options: nil},
	{Name: "var/cache", Options: []string{"com.sun:auto-snapshot=false"}},
	{Name: "var/tmp", Options: []string{"com.sun:auto-snapshot=false", "setuid=off"}},
	{Name: "tmp", Options: []string{"com.sun:auto-snapshot=false", "setuid=off", "devices=off"}},
}

var bpoolDatasets = []DatasetSpec{
	{Name: "BOOT", Options: []string{"canmount=off", "mountpoint=none"}},
	{Name: "BOOT/ubuntu", Options: []string{"mountpoint=/boot"}},
}

// BuildTopology derives the pool layout from a partition plan. The root
// filesystem is always rpool/ROOT/ubuntu and is always the bootable dataset.
func BuildTopology(plan PartitionPlan) PoolTopology {
	rootPart := plan.Find(RoleZFSRoot)

	topo := PoolTopology{
		RPool: PoolSpec{
			Name:   "rpool",
			Device: plan.DevicePath(*rootPart),
			PoolOpts: []string{
				"ashift=12",
			},
			FsOpts: []string{
				"acltype=posixacl",
				"compression=lz4",
				"normalization=formD",
				"relatime=on",
				"xattr=sa",
				"canmount=off",
				"mountpoint=/",
			},
			Datasets: rpoolDatasets,
			BootFS:   "rpool/ROOT/ubuntu",
		},
	}

	if bootPart := plan.Find(RoleZFSBoot); bootPart != nil {
		poolOpts := append([]string{"ashift=12"}, bpoolFeatures...)
		topo.BPool = &PoolSpec{
			Name:             "bpool",
			Device:           plan.DevicePath(*bootPart),
			RestrictFeatures: true,
			PoolOpts:         poolOpts,
			FsOpts: []string{
				"compression=lz4",
				"canmount=off",
				"mountpoint=/boot",
			},
			Datasets: bpoolDatasets,
		}
	}

	return topo
}
