package contracts

// Default contract interfaces. Per-TLD deployments share these unless the
// directory points at an override file; the resolver falls back to this set
// before giving up on a (TLD, role) pair.

const registrarControllerABI = `[
  {"type":"function","stateMutability":"view","name":"makeCommitment","inputs":[
    {"name":"name","type":"string"},
    {"name":"owner","type":"address"},
    {"name":"duration","type":"uint256"},
    {"name":"secret","type":"bytes32"},
    {"name":"resolver","type":"address"},
    {"name":"data","type":"bytes[]"},
    {"name":"reverseRecord","type":"bool"},
    {"name":"ownerControlledFuses","type":"uint16"}],
   "outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","stateMutability":"nonpayable","name":"commit","inputs":[
    {"name":"commitment","type":"bytes32"}],"outputs":[]},
  {"type":"function","stateMutability":"payable","name":"register","inputs":[
    {"name":"name","type":"string"},
    {"name":"owner","type":"address"},
    {"name":"duration","type":"uint256"},
    {"name":"secret","type":"bytes32"},
    {"name":"resolver","type":"address"},
    {"name":"data","type":"bytes[]"},
    {"name":"reverseRecord","type":"bool"},
    {"name":"ownerControlledFuses","type":"uint16"}],"outputs":[]},
  {"type":"function","stateMutability":"payable","name":"renew","inputs":[
    {"name":"name","type":"string"},
    {"name":"duration","type":"uint256"}],"outputs":[]},
  {"type":"function","stateMutability":"view","name":"rentPrice","inputs":[
    {"name":"name","type":"string"},
    {"name":"duration","type":"uint256"}],
   "outputs":[{"name":"price","type":"tuple","components":[
    {"name":"base","type":"uint256"},
    {"name":"premium","type":"uint256"}]}]},
  {"type":"function","stateMutability":"view","name":"available","inputs":[
    {"name":"name","type":"string"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","stateMutability":"view","name":"minCommitmentAge","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"view","name":"maxCommitmentAge","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"view","name":"commitments","inputs":[
    {"name":"","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"NameRegistered","anonymous":false,"inputs":[
    {"name":"name","type":"string","indexed":false},
    {"name":"label","type":"bytes32","indexed":true},
    {"name":"owner","type":"address","indexed":true},
    {"name":"baseCost","type":"uint256","indexed":false},
    {"name":"premium","type":"uint256","indexed":false},
    {"name":"expires","type":"uint256","indexed":false}]},
  {"type":"event","name":"NameRenewed","anonymous":false,"inputs":[
    {"name":"name","type":"string","indexed":false},
    {"name":"label","type":"bytes32","indexed":true},
    {"name":"cost","type":"uint256","indexed":false},
    {"name":"expires","type":"uint256","indexed":false}]}
]`

const registryABI = `[
  {"type":"function","stateMutability":"view","name":"owner","inputs":[
    {"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","stateMutability":"view","name":"resolver","inputs":[
    {"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","stateMutability":"view","name":"ttl","inputs":[
    {"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"uint64"}]},
  {"type":"function","stateMutability":"nonpayable","name":"setOwner","inputs":[
    {"name":"node","type":"bytes32"},
    {"name":"owner","type":"address"}],"outputs":[]},
  {"type":"event","name":"Transfer","anonymous":false,"inputs":[
    {"name":"node","type":"bytes32","indexed":true},
    {"name":"owner","type":"address","indexed":false}]},
  {"type":"event","name":"NewOwner","anonymous":false,"inputs":[
    {"name":"node","type":"bytes32","indexed":true},
    {"name":"label","type":"bytes32","indexed":true},
    {"name":"owner","type":"address","indexed":false}]}
]`

const nameWrapperABI = `[
  {"type":"function","stateMutability":"view","name":"ownerOf","inputs":[
    {"name":"id","type":"uint256"}],"outputs":[{"name":"owner","type":"address"}]},
  {"type":"function","stateMutability":"nonpayable","name":"setRecord","inputs":[
    {"name":"node","type":"bytes32"},
    {"name":"owner","type":"address"},
    {"name":"resolver","type":"address"},
    {"name":"ttl","type":"uint64"}],"outputs":[]}
]`

const publicResolverABI = `[
  {"type":"function","stateMutability":"nonpayable","name":"setAddr","inputs":[
    {"name":"node","type":"bytes32"},
    {"name":"coinType","type":"uint256"},
    {"name":"a","type":"bytes"}],"outputs":[]},
  {"type":"function","stateMutability":"view","name":"addr","inputs":[
    {"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","stateMutability":"nonpayable","name":"setText","inputs":[
    {"name":"node","type":"bytes32"},
    {"name":"key","type":"string"},
    {"name":"value","type":"string"}],"outputs":[]},
  {"type":"function","stateMutability":"view","name":"text","inputs":[
    {"name":"node","type":"bytes32"},
    {"name":"key","type":"string"}],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","stateMutability":"view","name":"name","inputs":[
    {"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"string"}]}
]`

const baseRegistrarABI = `[
  {"type":"function","stateMutability":"view","name":"ownerOf","inputs":[
    {"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","stateMutability":"nonpayable","name":"transferFrom","inputs":[
    {"name":"from","type":"address"},
    {"name":"to","type":"address"},
    {"name":"tokenId","type":"uint256"}],"outputs":[]},
  {"type":"function","stateMutability":"view","name":"nameExpires","inputs":[
    {"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}
]`
