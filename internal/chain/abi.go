// Package chain talks to the ProquintNFT contract over JSON-RPC: contract
// reads, event log filtering and unsigned calldata for the write entry points.
package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Subset of the ProquintNFT ABI used by the backend.
const registryABIJSON = `[
  {"type":"function","name":"commit","stateMutability":"nonpayable","inputs":[{"name":"commitment","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"register","stateMutability":"payable","inputs":[{"name":"input","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"registerTo","stateMutability":"payable","inputs":[{"name":"input","type":"bytes32"},{"name":"to","type":"address"}],"outputs":[]},
  {"type":"function","name":"renew","stateMutability":"payable","inputs":[{"name":"input","type":"bytes32"}],"outputs":[]},
  {"type":"function","name":"acceptInbox","stateMutability":"nonpayable","inputs":[{"name":"id","type":"bytes4"}],"outputs":[]},
  {"type":"function","name":"shelve","stateMutability":"nonpayable","inputs":[{"name":"id","type":"bytes4"}],"outputs":[]},
  {"type":"function","name":"rejectInbox","stateMutability":"nonpayable","inputs":[{"name":"id","type":"bytes4"}],"outputs":[]},
  {"type":"function","name":"cleanInbox","stateMutability":"nonpayable","inputs":[{"name":"id","type":"bytes4"}],"outputs":[]},
  {"type":"function","name":"safeTransferFrom","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},

  {"type":"function","name":"getExpiry","stateMutability":"view","inputs":[{"name":"id","type":"bytes4"}],"outputs":[{"name":"","type":"uint64"}]},
  {"type":"function","name":"inboxExpiry","stateMutability":"view","inputs":[{"name":"id","type":"bytes4"}],"outputs":[{"name":"","type":"uint64"}]},
  {"type":"function","name":"inboxCount","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"primaryName","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bytes4"}]},
  {"type":"function","name":"owner","stateMutability":"view","inputs":[{"name":"id","type":"bytes4"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"ownerOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"totalInbox","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},

  {"type":"event","name":"Transfer","anonymous":false,"inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"tokenId","type":"uint256","indexed":true}]},
  {"type":"event","name":"PrimaryUpdated","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"id","type":"bytes4","indexed":true}]},
  {"type":"event","name":"InboxUpdated","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"id","type":"bytes4","indexed":true},{"name":"inboxExpiry","type":"uint64","indexed":false}]},
  {"type":"event","name":"Renewed","anonymous":false,"inputs":[{"name":"id","type":"bytes4","indexed":true},{"name":"newExpiry","type":"uint64","indexed":false}]},
  {"type":"event","name":"Committed","anonymous":false,"inputs":[{"name":"commitment","type":"bytes32","indexed":false}]}
]`

var registryABI = mustParseABI(registryABIJSON)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic("chain: invalid registry ABI: " + err.Error())
	}
	return parsed
}

// ABI returns the parsed contract ABI.
func ABI() abi.ABI {
	return registryABI
}
