package preview1

// ModuleName is the import namespace of the preview1 ABI.
const ModuleName = "wasi_snapshot_preview1"

// Filetype is the type of a file descriptor or file.
type Filetype uint8

const (
	FiletypeUnknown Filetype = iota
	FiletypeBlockDevice
	FiletypeCharacterDevice
	FiletypeDirectory
	FiletypeRegularFile
	FiletypeSocketDgram
	FiletypeSocketStream
	FiletypeSymbolicLink
)

// Descriptor flags.
const (
	FdflagAppend   uint16 = 1 << 0
	FdflagDsync    uint16 = 1 << 1
	FdflagNonblock uint16 = 1 << 2
	FdflagRsync    uint16 = 1 << 3
	FdflagSync     uint16 = 1 << 4
)

// Open flags for path_open.
const (
	OflagCreat     uint16 = 1 << 0
	OflagDirectory uint16 = 1 << 1
	OflagExcl      uint16 = 1 << 2
	OflagTrunc     uint16 = 1 << 3
)

// LookupSymlinkFollow is the only lookupflags bit.
const LookupSymlinkFollow uint32 = 1 << 0

// Flags for fd_filestat_set_times and path_filestat_set_times.
const (
	FstflagAtim    uint16 = 1 << 0
	FstflagAtimNow uint16 = 1 << 1
	FstflagMtim    uint16 = 1 << 2
	FstflagMtimNow uint16 = 1 << 3
)

// Whence values for fd_seek.
const (
	WhenceSet uint8 = iota
	WhenceCur
	WhenceEnd
)

// Clock identifiers.
const (
	ClockRealtime uint32 = iota
	ClockMonotonic
	ClockProcessCputime
	ClockThreadCputime
)

// Event types for poll_oneoff.
const (
	EventtypeClock uint8 = iota
	EventtypeFdRead
	EventtypeFdWrite
)

// SubclockAbstime marks a clock subscription timeout as absolute.
const SubclockAbstime uint16 = 1 << 0

// Flags for sock_recv, sock_send and sock_shutdown.
const (
	RiflagRecvPeek    uint16 = 1 << 0
	RiflagRecvWaitall uint16 = 1 << 1
	SdflagRd          uint8  = 1 << 0
	SdflagWr          uint8  = 1 << 1
)

// Advice values for fd_advise.
const (
	AdviceNormal uint8 = iota
	AdviceSequential
	AdviceRandom
	AdviceWillneed
	AdviceDontneed
	AdviceNoreuse
)

// Rights bits. The host grants every right and does not enforce them.
const (
	RightFdDatasync uint64 = 1 << iota
	RightFdRead
	RightFdSeek
	RightFdFdstatSetFlags
	RightFdSync
	RightFdTell
	RightFdWrite
	RightFdAdvise
	RightFdAllocate
	RightPathCreateDirectory
	RightPathCreateFile
	RightPathLinkSource
	RightPathLinkTarget
	RightPathOpen
	RightFdReaddir
	RightPathReadlink
	RightPathRenameSource
	RightPathRenameTarget
	RightPathFilestatGet
	RightPathFilestatSetSize
	RightPathFilestatSetTimes
	RightFdFilestatGet
	RightFdFilestatSetSize
	RightFdFilestatSetTimes
	RightPathSymlink
	RightPathRemoveDirectory
	RightPathUnlinkFile
	RightPollFdReadwrite
	RightSockShutdown

	RightsAll = RightSockShutdown<<1 - 1
)

// Rights reported for terminals. isatty in wasi-libc checks that seek and
// tell are absent.
const RightsTTY = RightsAll &^ (RightFdSeek | RightFdTell)

// Sizes of ABI records in guest memory.
const (
	sizeIovec        = 8
	sizeFdstat       = 24
	sizeFilestat     = 64
	sizePrestat      = 8
	sizeDirent       = 24
	sizeSubscription = 48
	sizeEvent        = 32
)
