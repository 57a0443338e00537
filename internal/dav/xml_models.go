package dav

import "encoding/xml"

// XML request/response models for the DAV surface: PROPFIND/PROPPATCH
// property plumbing, the sync-collection REPORT, and the share-management
// POST body.

type multistatus struct {
	XMLName   xml.Name   `xml:"d:multistatus"`
	XmlnsD    string     `xml:"xmlns:d,attr"`
	XmlnsC    string     `xml:"xmlns:cal,attr"`
	XmlnsA    string     `xml:"xmlns:card,attr"`
	XmlnsCS   string     `xml:"xmlns:cs,attr,omitempty"`
	SyncToken string     `xml:"d:sync-token,omitempty"`
	Response  []response `xml:"d:response"`
}

type response struct {
	Href     string     `xml:"d:href"`
	Propstat []propstat `xml:"d:propstat,omitempty"`
	Status   string     `xml:"d:status,omitempty"`
}

type propstat struct {
	Prop   prop   `xml:"d:prop"`
	Status string `xml:"d:status"`
}

type prop struct {
	DisplayName             string                   `xml:"d:displayname,omitempty"`
	ResourceType            *resourceType            `xml:"d:resourcetype,omitempty"`
	GetETag                 string                   `xml:"d:getetag,omitempty"`
	GetContentType          string                   `xml:"d:getcontenttype,omitempty"`
	GetContentLength        string                   `xml:"d:getcontentlength,omitempty"`
	SyncToken               string                   `xml:"d:sync-token,omitempty"`
	CTag                    string                   `xml:"cs:getctag,omitempty"`
	CurrentUserPrincipal    *hrefProp                `xml:"d:current-user-principal,omitempty"`
	PrincipalURL            *hrefProp                `xml:"d:principal-URL,omitempty"`
	Owner                   *hrefProp                `xml:"d:owner,omitempty"`
	SupportedReportSet      *supportedReportSet      `xml:"d:supported-report-set,omitempty"`
	Invite                  *inviteProp              `xml:"cs:invite,omitempty"`
	CurrentUserPrivilegeSet *currentUserPrivilegeSet `xml:"d:current-user-privilege-set,omitempty"`
}

type resourceType struct {
	Collection  *struct{} `xml:"d:collection,omitempty"`
	Calendar    *struct{} `xml:"cal:calendar,omitempty"`
	AddressBook *struct{} `xml:"card:addressbook,omitempty"`
	Principal   *struct{} `xml:"d:principal,omitempty"`
	SharedOwner *struct{} `xml:"cs:shared-owner,omitempty"`
	Shared      *struct{} `xml:"cs:shared,omitempty"`
}

type hrefProp struct {
	Href string `xml:"d:href"`
}

type supportedReportSet struct {
	Reports []supportedReport `xml:"d:supported-report"`
}

type supportedReport struct {
	Report reportType `xml:"d:report"`
}

type reportType struct {
	SyncCollection *struct{} `xml:"d:sync-collection,omitempty"`
}

// inviteProp renders the sharee list as the calendarserver invite property.
type inviteProp struct {
	Users []inviteUser `xml:"cs:user"`
}

type inviteUser struct {
	Href             string    `xml:"d:href"`
	CommonName       string    `xml:"cs:common-name,omitempty"`
	ReadAccess       *struct{} `xml:"cs:access>cs:read,omitempty"`
	ReadWriteAccess  *struct{} `xml:"cs:access>cs:read-write,omitempty"`
	StatusNoResponse *struct{} `xml:"cs:invite-noresponse,omitempty"`
	StatusAccepted   *struct{} `xml:"cs:invite-accepted,omitempty"`
	StatusInvalid    *struct{} `xml:"cs:invite-invalid,omitempty"`
}

type currentUserPrivilegeSet struct {
	Privileges []privilege `xml:"d:privilege"`
}

type privilege struct {
	Read            *struct{} `xml:"d:read,omitempty"`
	Write           *struct{} `xml:"d:write,omitempty"`
	WriteContent    *struct{} `xml:"d:write-content,omitempty"`
	WriteProperties *struct{} `xml:"d:write-properties,omitempty"`
	Bind            *struct{} `xml:"d:bind,omitempty"`
	Unbind          *struct{} `xml:"d:unbind,omitempty"`
	Share           *struct{} `xml:"d:share,omitempty"`
	ReadFreeBusy    *struct{} `xml:"cal:read-free-busy,omitempty"`
}

// reportRequest captures the REPORT body; only sync-collection is handled.
type reportRequest struct {
	XMLName   xml.Name
	SyncToken string       `xml:"DAV: sync-token"`
	SyncLevel string       `xml:"DAV: sync-level"`
	Limit     *reportLimit `xml:"DAV: limit"`
}

type reportLimit struct {
	NResults int `xml:"DAV: nresults"`
}

// propfindRequest represents a PROPFIND request body (RFC 4918 Section 9.1).
type propfindRequest struct {
	XMLName  xml.Name
	AllProp  *struct{} `xml:"DAV: allprop"`
	PropName *struct{} `xml:"DAV: propname"`
}

type proppatchRequest struct {
	XMLName xml.Name
	Set     *proppatchSet    `xml:"DAV: set"`
	Remove  *proppatchRemove `xml:"DAV: remove"`
}

type proppatchSet struct {
	Prop proppatchProp `xml:"DAV: prop"`
}

type proppatchRemove struct {
	Prop proppatchProp `xml:"DAV: prop"`
}

type proppatchProp struct {
	DisplayName  *string             `xml:"DAV: displayname"`
	ResourceType *resourceTypeUpdate `xml:"DAV: resourcetype"`
}

// resourceTypeUpdate is the client's desired resourcetype; a shared-owner
// collection whose update omits the shared-owner marker is an unshare
// instruction.
type resourceTypeUpdate struct {
	SharedOwner *struct{} `xml:"http://calendarserver.org/ns/ shared-owner"`
}

// shareRequest is the share-management POST body in the calendarserver
// sharing dialect.
type shareRequest struct {
	XMLName xml.Name      `xml:"http://calendarserver.org/ns/ share"`
	Set     []shareSet    `xml:"http://calendarserver.org/ns/ set"`
	Remove  []shareRemove `xml:"http://calendarserver.org/ns/ remove"`
}

type shareSet struct {
	Href       string    `xml:"DAV: href"`
	CommonName string    `xml:"http://calendarserver.org/ns/ common-name"`
	Summary    string    `xml:"http://calendarserver.org/ns/ summary"`
	Read       *struct{} `xml:"http://calendarserver.org/ns/ read"`
	ReadWrite  *struct{} `xml:"http://calendarserver.org/ns/ read-write"`
}

type shareRemove struct {
	Href string `xml:"DAV: href"`
}
