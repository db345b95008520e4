package wire

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// AccountType classifies the account a SteamID refers to.
type AccountType uint64

// Account types.
const (
	AccountTypeInvalid        AccountType = 0
	AccountTypeIndividual     AccountType = 1
	AccountTypeMultiseat      AccountType = 2
	AccountTypeGameServer     AccountType = 3
	AccountTypeAnonGameServer AccountType = 4
	AccountTypePending        AccountType = 5
	AccountTypeContentServer  AccountType = 6
	AccountTypeClan           AccountType = 7
	AccountTypeChat           AccountType = 8
	AccountTypeConsoleUser    AccountType = 9
	AccountTypeAnonUser       AccountType = 10
)

// Flags packed into the high bits of the instance field of chat ids.
const (
	InstanceFlagMMSLobby uint32 = 0x20000
	InstanceFlagLobby    uint32 = 0x40000
	InstanceFlagClan     uint32 = 0x80000
)

// SteamID packs universe, account type, instance and account ID into 64 bits:
//
//	[8 bits universe][4 bits type][20 bits instance][32 bits account ID]
type SteamID uint64

// NewSteamID assembles a SteamID from its parts.
func NewSteamID(account uint32, instance uint32, accountType AccountType, universe Universe) SteamID {
	return SteamID(uint64(universe)<<56 |
		uint64(accountType)<<52 |
		uint64(instance&0xFFFFF)<<32 |
		uint64(account))
}

// AccountID returns the low 32 bits.
func (id SteamID) AccountID() uint32 {
	return uint32(id)
}

// Instance returns the 20-bit instance field.
func (id SteamID) Instance() uint32 {
	return uint32(id>>32) & 0xFFFFF
}

// Type returns the account type.
func (id SteamID) Type() AccountType {
	return AccountType(id>>52) & 0xF
}

// Universe returns the universe.
func (id SteamID) Universe() Universe {
	return Universe(id>>56) & 0xFF
}

// Valid reports whether the id refers to an account that can exist.
func (id SteamID) Valid() bool {
	if id.Type() == AccountTypeInvalid || id.Type() > AccountTypeAnonUser {
		return false
	}
	if id.Universe() == UniverseInvalid || id.Universe() > UniverseDev {
		return false
	}
	switch id.Type() {
	case AccountTypeIndividual:
		return id.AccountID() != 0 && id.Instance() <= 4
	case AccountTypeClan:
		return id.AccountID() != 0 && id.Instance() == 0
	case AccountTypeGameServer:
		return id.AccountID() != 0
	}
	return true
}

// Steam2 renders the textual STEAM_X:Y:Z form.
func (id SteamID) Steam2() string {
	account := id.AccountID()
	return fmt.Sprintf("STEAM_%d:%d:%d", uint64(id.Universe()), account&1, account>>1)
}

// Steam3 renders the textual [C:U:A] form.
func (id SteamID) Steam3() string {
	typeChar, ok := accountTypeChars[id.Type()]
	if !ok {
		typeChar = 'i'
	}
	withInstance := false
	switch id.Type() {
	case AccountTypeAnonGameServer, AccountTypeMultiseat:
		withInstance = true
	case AccountTypeIndividual:
		withInstance = id.Instance() != 1
	case AccountTypeChat:
		switch {
		case id.Instance()&InstanceFlagClan != 0:
			typeChar = 'c'
		case id.Instance()&InstanceFlagLobby != 0:
			typeChar = 'L'
		default:
			typeChar = 'T'
		}
	}
	if withInstance {
		return fmt.Sprintf("[%c:%d:%d:%d]", typeChar, uint64(id.Universe()), id.AccountID(), id.Instance())
	}
	return fmt.Sprintf("[%c:%d:%d]", typeChar, uint64(id.Universe()), id.AccountID())
}

// String returns the 64-bit decimal form.
func (id SteamID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseSteamID accepts the decimal 64-bit form, the STEAM_X:Y:Z form and the
// [C:U:A] form.
func ParseSteamID(s string) (SteamID, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return SteamID(v), nil
	}
	if strings.HasPrefix(s, "STEAM_") {
		return parseSteam2(s)
	}
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		return parseSteam3(s)
	}
	return 0, errors.Errorf("invalid steam id: %q", s)
}

func parseSteam2(s string) (SteamID, error) {
	parts := strings.Split(strings.TrimPrefix(s, "STEAM_"), ":")
	if len(parts) != 3 {
		return 0, errors.Errorf("invalid steam2 id: %q", s)
	}
	universe, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return 0, errors.Errorf("invalid steam2 id: %q", s)
	}
	reminder, err := strconv.ParseUint(parts[1], 10, 1)
	if err != nil {
		return 0, errors.Errorf("invalid steam2 id: %q", s)
	}
	account, err := strconv.ParseUint(parts[2], 10, 31)
	if err != nil {
		return 0, errors.Errorf("invalid steam2 id: %q", s)
	}
	// Games before the second universe render public ids as STEAM_0.
	if universe == 0 {
		universe = 1
	}
	return NewSteamID(uint32(account<<1|reminder), 1, AccountTypeIndividual, Universe(universe)), nil
}

func parseSteam3(s string) (SteamID, error) {
	parts := strings.Split(s[1:len(s)-1], ":")
	if len(parts) != 3 && len(parts) != 4 {
		return 0, errors.Errorf("invalid steam3 id: %q", s)
	}
	if len(parts[0]) != 1 {
		return 0, errors.Errorf("invalid steam3 id: %q", s)
	}
	typeChar := parts[0][0]
	accountType, ok := accountCharTypes[typeChar]
	if !ok {
		return 0, errors.Errorf("invalid steam3 id: %q", s)
	}
	universe, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return 0, errors.Errorf("invalid steam3 id: %q", s)
	}
	account, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return 0, errors.Errorf("invalid steam3 id: %q", s)
	}

	var instance uint32
	switch {
	case typeChar == 'g' || typeChar == 'T':
		instance = 0
	case len(parts) == 4:
		v, err := strconv.ParseUint(parts[3], 10, 20)
		if err != nil {
			return 0, errors.Errorf("invalid steam3 id: %q", s)
		}
		instance = uint32(v)
	case typeChar == 'L':
		instance = InstanceFlagLobby
	case typeChar == 'c':
		instance = InstanceFlagClan
	case accountType == AccountTypeIndividual || accountType == AccountTypeGameServer:
		instance = 1
	}

	return NewSteamID(uint32(account), instance, accountType, Universe(universe)), nil
}

var accountTypeChars = map[AccountType]byte{
	AccountTypeInvalid:        'I',
	AccountTypeIndividual:     'U',
	AccountTypeMultiseat:      'M',
	AccountTypeGameServer:     'G',
	AccountTypeAnonGameServer: 'A',
	AccountTypePending:        'P',
	AccountTypeContentServer:  'C',
	AccountTypeClan:           'g',
	AccountTypeChat:           'T',
	AccountTypeAnonUser:       'a',
}

var accountCharTypes = map[byte]AccountType{
	'I': AccountTypeInvalid,
	'i': AccountTypeInvalid,
	'U': AccountTypeIndividual,
	'M': AccountTypeMultiseat,
	'G': AccountTypeGameServer,
	'A': AccountTypeAnonGameServer,
	'P': AccountTypePending,
	'C': AccountTypeContentServer,
	'g': AccountTypeClan,
	'T': AccountTypeChat,
	'L': AccountTypeChat,
	'c': AccountTypeChat,
	'a': AccountTypeAnonUser,
}
